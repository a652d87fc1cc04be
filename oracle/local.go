package oracle

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/log"

	"github.com/sealedvote/tally/crypto/ecc"
	"github.com/sealedvote/tally/crypto/ecc/curves"
	"github.com/sealedvote/tally/crypto/elgamal"
	"github.com/sealedvote/tally/crypto/ethereum"
	"github.com/sealedvote/tally/types"
	"github.com/sealedvote/tally/util"
)

// Local is an in-process decryption oracle. It holds the ElGamal private
// key of the deployment and a signing key whose address authenticates its
// results. Requests are answered asynchronously on a worker goroutine, so
// the delay between a submission and its callback is unbounded from the
// ledger's point of view, exactly as with a remote oracle.
type Local struct {
	curve      ecc.Point
	publicKey  ecc.Point
	privateKey *big.Int
	signer     *ethereum.SignKeys
	sink       ResultSink

	mu       sync.Mutex
	cancel   context.CancelFunc
	requests chan request
}

type request struct {
	id          uint64
	ciphertexts [][]byte
}

// NewLocal creates a Local oracle on the given curve type, generating a
// fresh ElGamal key pair and a fresh signing key. The sink receives every
// decryption result; it can be set later with SetSink if the consumer is
// constructed afterwards.
func NewLocal(curveType string, sink ResultSink) (*Local, error) {
	curve, err := curves.New(curveType)
	if err != nil {
		return nil, err
	}
	publicKey, privateKey, err := elgamal.GenerateKey(curve)
	if err != nil {
		return nil, fmt.Errorf("generate encryption key: %w", err)
	}
	signer := ethereum.NewSignKeys()
	if err := signer.Generate(); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return &Local{
		curve:      curve,
		publicKey:  publicKey,
		privateKey: privateKey,
		signer:     signer,
		sink:       sink,
		requests:   make(chan request, 64),
	}, nil
}

// SetSink sets the consumer of decryption results. It must be called
// before Start.
func (o *Local) SetSink(sink ResultSink) {
	o.sink = sink
}

// PublicKey returns the ElGamal public key clients encrypt their votes
// under.
func (o *Local) PublicKey() ecc.Point {
	return o.publicKey
}

// Address returns the address of the oracle's signing key. Results are
// authenticated by recovering this address from the proof signature.
func (o *Local) Address() common.Address {
	return o.signer.Address()
}

// RequestDecryption queues the given serialized ciphertexts for decryption
// and returns the opaque request identifier the eventual callback will
// carry. It never blocks on the decryption itself.
func (o *Local) RequestDecryption(ciphertexts [][]byte) (uint64, error) {
	if len(ciphertexts) != types.ResultWords {
		return 0, fmt.Errorf("expected %d ciphertexts, got %d", types.ResultWords, len(ciphertexts))
	}
	id := util.RandomUint64()
	select {
	case o.requests <- request{id: id, ciphertexts: ciphertexts}:
	default:
		return 0, fmt.Errorf("oracle queue is full")
	}
	return id, nil
}

// Start launches the worker goroutine answering queued requests. It
// returns an error if the oracle is already running or has no sink.
func (o *Local) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		return fmt.Errorf("oracle already running")
	}
	if o.sink == nil {
		return fmt.Errorf("oracle has no result sink")
	}
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	go o.answerRequests(ctx)
	return nil
}

// Stop halts the worker goroutine. Queued but unanswered requests stay
// inert, which mirrors a remote oracle dropping a submission.
func (o *Local) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

func (o *Local) answerRequests(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-o.requests:
			payload, proof, err := o.answer(req)
			if err != nil {
				log.Warnw("failed to answer decryption request",
					"requestId", req.id, "error", err.Error())
				continue
			}
			if err := o.sink.HandleDecryptionResult(req.id, payload, proof); err != nil {
				log.Warnw("decryption result rejected",
					"requestId", req.id, "error", err.Error())
			}
		}
	}
}

// answer decrypts the request's ciphertexts and signs the resulting
// payload bound to the request identifier.
func (o *Local) answer(req request) (payload, proof []byte, err error) {
	counts := make([]uint64, len(req.ciphertexts))
	for i, data := range req.ciphertexts {
		ct := elgamal.NewCiphertext(o.curve)
		if err := ct.Deserialize(data); err != nil {
			return nil, nil, fmt.Errorf("deserialize ciphertext %d: %w", i, err)
		}
		_, msg, err := elgamal.Decrypt(o.publicKey, o.privateKey, ct.C1, ct.C2, types.MaxTallyValue)
		if err != nil {
			return nil, nil, fmt.Errorf("decrypt ciphertext %d: %w", i, err)
		}
		counts[i] = msg.Uint64()
	}
	payload = EncodeResultPayload(counts[0], counts[1])
	proof, err = o.signer.SignEthereum(ProofMessage(req.id, payload))
	if err != nil {
		return nil, nil, fmt.Errorf("sign result: %w", err)
	}
	return payload, proof, nil
}
