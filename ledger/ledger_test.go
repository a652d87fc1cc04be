package ledger

import (
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"
	"go.vocdoni.io/dvote/log"

	"github.com/sealedvote/tally/crypto/ecc"
	"github.com/sealedvote/tally/crypto/ecc/curves"
	"github.com/sealedvote/tally/crypto/elgamal"
	"github.com/sealedvote/tally/crypto/ethereum"
	"github.com/sealedvote/tally/oracle"
	"github.com/sealedvote/tally/storage"
)

func TestMain(m *testing.M) {
	log.Init("debug", "stdout", nil)
	os.Exit(m.Run())
}

// captureDecryptor records submissions so tests can answer them
// synchronously with full control over payload and proof.
type captureDecryptor struct {
	nextID   uint64
	requests map[uint64][][]byte
}

func newCaptureDecryptor() *captureDecryptor {
	return &captureDecryptor{requests: make(map[uint64][][]byte)}
}

func (d *captureDecryptor) RequestDecryption(ciphertexts [][]byte) (uint64, error) {
	d.nextID++
	d.requests[d.nextID] = ciphertexts
	return d.nextID, nil
}

// fixture wires a ledger over a test store with a manual clock, a capture
// decryptor and a signing key playing the oracle.
type fixture struct {
	c       *qt.C
	ledger  *Ledger
	dec     *captureDecryptor
	signer  *ethereum.SignKeys
	pubKey  ecc.Point
	privKey *big.Int
	admin   common.Address
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	c := qt.New(t)

	curve, err := curves.New(curves.CurveTypeBabyJubJub)
	c.Assert(err, qt.IsNil)
	pubKey, privKey, err := elgamal.GenerateKey(curve)
	c.Assert(err, qt.IsNil)

	signer := ethereum.NewSignKeys()
	c.Assert(signer.Generate(), qt.IsNil)

	f := &fixture{
		c:       c,
		dec:     newCaptureDecryptor(),
		signer:  signer,
		pubKey:  pubKey,
		privKey: privKey,
		admin:   common.Address{0xad},
		now:     time.Unix(1700000000, 0),
	}
	f.ledger, err = New(Config{
		Storage:       storage.New(metadb.NewTest(t)),
		Decryptor:     f.dec,
		EncryptionKey: pubKey,
		OracleAddress: signer.Address(),
		CreateAuth:    AdminOnly(f.admin),
		Now:           func() time.Time { return f.now },
	})
	c.Assert(err, qt.IsNil)
	return f
}

// vote encrypts a single-bit indicator pair and casts it.
func (f *fixture) vote(proposalID uint64, voter common.Address, favor bool) error {
	forBit, againstBit := big.NewInt(0), big.NewInt(1)
	if favor {
		forBit, againstBit = big.NewInt(1), big.NewInt(0)
	}
	encFor, err := elgamal.NewCiphertext(f.pubKey).Encrypt(forBit, f.pubKey, nil)
	f.c.Assert(err, qt.IsNil)
	encAgainst, err := elgamal.NewCiphertext(f.pubKey).Encrypt(againstBit, f.pubKey, nil)
	f.c.Assert(err, qt.IsNil)
	return f.ledger.CastVote(proposalID, encFor, encAgainst, voter)
}

// answer decrypts a captured request the way the real oracle would,
// returning the signed payload and proof.
func (f *fixture) answer(requestID uint64) (payload, proof []byte) {
	cts, ok := f.dec.requests[requestID]
	f.c.Assert(ok, qt.IsTrue)
	counts := make([]uint64, len(cts))
	for i, data := range cts {
		ct := elgamal.NewCiphertext(f.pubKey)
		f.c.Assert(ct.Deserialize(data), qt.IsNil)
		_, msg, err := elgamal.Decrypt(f.pubKey, f.privKey, ct.C1, ct.C2, 1<<16)
		f.c.Assert(err, qt.IsNil)
		counts[i] = msg.Uint64()
	}
	payload = oracle.EncodeResultPayload(counts[0], counts[1])
	proof, err := f.signer.SignEthereum(oracle.ProofMessage(requestID, payload))
	f.c.Assert(err, qt.IsNil)
	return payload, proof
}

func TestCreateProposal(t *testing.T) {
	f := newFixture(t)
	c := f.c

	id, err := f.ledger.CreateProposal("raise the budget", time.Hour, f.admin)
	c.Assert(err, qt.IsNil)
	c.Assert(id, qt.Equals, uint64(1))

	p, err := f.ledger.Proposal(id)
	c.Assert(err, qt.IsNil)
	c.Assert(p.Description, qt.Equals, "raise the budget")
	c.Assert(p.Creator, qt.Equals, f.admin)
	c.Assert(p.VotingDeadline.Unix(), qt.Equals, f.now.Add(time.Hour).Unix())
	c.Assert(p.ResultsPublished, qt.IsFalse)
	c.Assert(len(p.EncryptedFor), qt.Equals, elgamal.SizeCiphertext)
	c.Assert(len(p.EncryptedAgainst), qt.Equals, elgamal.SizeCiphertext)

	// Identifiers are sequential
	id2, err := f.ledger.CreateProposal("second", time.Hour, f.admin)
	c.Assert(err, qt.IsNil)
	c.Assert(id2, qt.Equals, uint64(2))

	ids, err := f.ledger.ListProposals()
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.DeepEquals, []uint64{1, 2})
}

func TestCreateProposalUnauthorized(t *testing.T) {
	f := newFixture(t)
	c := f.c

	_, err := f.ledger.CreateProposal("nope", time.Hour, common.Address{0x99})
	c.Assert(err, qt.ErrorIs, ErrUnauthorized)

	// Nothing was allocated
	ids, err := f.ledger.ListProposals()
	c.Assert(err, qt.IsNil)
	c.Assert(len(ids), qt.Equals, 0)
}

func TestCreateProposalInvalidDuration(t *testing.T) {
	f := newFixture(t)
	c := f.c

	_, err := f.ledger.CreateProposal("zero", 0, f.admin)
	c.Assert(err, qt.ErrorIs, ErrInvalidInput)
	_, err = f.ledger.CreateProposal("negative", -time.Minute, f.admin)
	c.Assert(err, qt.ErrorIs, ErrInvalidInput)
}

func TestProposalNotFound(t *testing.T) {
	f := newFixture(t)
	c := f.c

	_, err := f.ledger.Proposal(0)
	c.Assert(err, qt.ErrorIs, ErrNotFound)
	_, err = f.ledger.Proposal(1)
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	id, err := f.ledger.CreateProposal("exists", time.Hour, f.admin)
	c.Assert(err, qt.IsNil)
	_, err = f.ledger.Proposal(id + 1)
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestCastVote(t *testing.T) {
	f := newFixture(t)
	c := f.c

	id, err := f.ledger.CreateProposal("vote here", time.Hour, f.admin)
	c.Assert(err, qt.IsNil)

	before, err := f.ledger.Proposal(id)
	c.Assert(err, qt.IsNil)

	c.Assert(f.vote(id, common.Address{1}, true), qt.IsNil)

	// The stored aggregates changed, the plaintext is not derivable here
	after, err := f.ledger.Proposal(id)
	c.Assert(err, qt.IsNil)
	c.Assert(after.EncryptedFor, qt.Not(qt.DeepEquals), before.EncryptedFor)
	c.Assert(after.EncryptedAgainst, qt.Not(qt.DeepEquals), before.EncryptedAgainst)
}

func TestCastVoteDuplicate(t *testing.T) {
	f := newFixture(t)
	c := f.c

	id, err := f.ledger.CreateProposal("once each", time.Hour, f.admin)
	c.Assert(err, qt.IsNil)

	voter := common.Address{1}
	c.Assert(f.vote(id, voter, true), qt.IsNil)
	c.Assert(f.vote(id, voter, true), qt.ErrorIs, ErrDuplicateVote)
	// Same voter, opposite direction is still a duplicate
	c.Assert(f.vote(id, voter, false), qt.ErrorIs, ErrDuplicateVote)
	// A different voter is fine
	c.Assert(f.vote(id, common.Address{2}, false), qt.IsNil)
}

func TestCastVoteDeadline(t *testing.T) {
	f := newFixture(t)
	c := f.c

	id, err := f.ledger.CreateProposal("deadline", time.Hour, f.admin)
	c.Assert(err, qt.IsNil)

	// One instant before the deadline is still open
	f.now = f.now.Add(time.Hour - time.Second)
	c.Assert(f.vote(id, common.Address{1}, true), qt.IsNil)

	// Exactly at the deadline is closed
	f.now = f.now.Add(time.Second)
	c.Assert(f.vote(id, common.Address{2}, true), qt.ErrorIs, ErrVotingClosed)
	f.now = f.now.Add(time.Minute)
	c.Assert(f.vote(id, common.Address{3}, true), qt.ErrorIs, ErrVotingClosed)
}

func TestCastVoteCheckOrder(t *testing.T) {
	f := newFixture(t)
	c := f.c

	id, err := f.ledger.CreateProposal("order", time.Hour, f.admin)
	c.Assert(err, qt.IsNil)

	voter := common.Address{1}
	c.Assert(f.vote(id, voter, true), qt.IsNil)

	// Unknown proposal wins over everything
	c.Assert(f.vote(id+1, voter, true), qt.ErrorIs, ErrNotFound)

	// Closed wins over duplicate: the same voter after the deadline gets
	// the closed error, not the duplicate one
	f.now = f.now.Add(2 * time.Hour)
	c.Assert(f.vote(id, voter, true), qt.ErrorIs, ErrVotingClosed)
}

func TestCastVoteNilCiphertexts(t *testing.T) {
	f := newFixture(t)
	c := f.c

	id, err := f.ledger.CreateProposal("nil", time.Hour, f.admin)
	c.Assert(err, qt.IsNil)
	c.Assert(f.ledger.CastVote(id, nil, nil, common.Address{1}), qt.ErrorIs, ErrInvalidInput)
}

func TestRequestTally(t *testing.T) {
	f := newFixture(t)
	c := f.c

	id, err := f.ledger.CreateProposal("tally", time.Hour, f.admin)
	c.Assert(err, qt.IsNil)

	// Too early
	_, err = f.ledger.RequestTally(id, f.admin)
	c.Assert(err, qt.ErrorIs, ErrVotingStillOpen)

	// Exactly at the deadline the window is closed and the tally can be
	// requested
	f.now = f.now.Add(time.Hour)
	requestID, err := f.ledger.RequestTally(id, f.admin)
	c.Assert(err, qt.IsNil)
	c.Assert(requestID, qt.Not(qt.Equals), uint64(0))
	c.Assert(f.dec.requests[requestID], qt.HasLen, 2)

	// Repeat requests are allowed, each with its own correlation
	requestID2, err := f.ledger.RequestTally(id, f.admin)
	c.Assert(err, qt.IsNil)
	c.Assert(requestID2, qt.Not(qt.Equals), requestID)

	// Unknown proposal
	_, err = f.ledger.RequestTally(id+1, f.admin)
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestHandleDecryptionResult(t *testing.T) {
	f := newFixture(t)
	c := f.c

	id, err := f.ledger.CreateProposal("finalize", time.Hour, f.admin)
	c.Assert(err, qt.IsNil)
	c.Assert(f.vote(id, common.Address{1}, true), qt.IsNil)
	c.Assert(f.vote(id, common.Address{2}, true), qt.IsNil)
	c.Assert(f.vote(id, common.Address{3}, false), qt.IsNil)

	// Results are unpublished before finalization
	res, err := f.ledger.Results(id)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Published, qt.IsFalse)
	c.Assert(res.For, qt.Equals, uint64(0))
	c.Assert(res.Against, qt.Equals, uint64(0))

	f.now = f.now.Add(2 * time.Hour)
	requestID, err := f.ledger.RequestTally(id, f.admin)
	c.Assert(err, qt.IsNil)

	payload, proof := f.answer(requestID)
	c.Assert(f.ledger.HandleDecryptionResult(requestID, payload, proof), qt.IsNil)

	res, err = f.ledger.Results(id)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Published, qt.IsTrue)
	c.Assert(res.For, qt.Equals, uint64(2))
	c.Assert(res.Against, qt.Equals, uint64(1))

	// Finalization happens exactly once: a replay of the same result and
	// a fresh result for a later request are both rejected and the counts
	// stay put
	c.Assert(f.ledger.HandleDecryptionResult(requestID, payload, proof), qt.ErrorIs, ErrAlreadyFinalized)
	requestID2, err := f.ledger.RequestTally(id, f.admin)
	c.Assert(err, qt.ErrorIs, ErrAlreadyFinalized)
	c.Assert(requestID2, qt.Equals, uint64(0))

	res, err = f.ledger.Results(id)
	c.Assert(err, qt.IsNil)
	c.Assert(res.For, qt.Equals, uint64(2))
	c.Assert(res.Against, qt.Equals, uint64(1))

	// Voting after finalization stays closed
	c.Assert(f.vote(id, common.Address{4}, true), qt.ErrorIs, ErrVotingClosed)
}

func TestHandleDecryptionResultUnknownRequest(t *testing.T) {
	f := newFixture(t)
	c := f.c

	payload := oracle.EncodeResultPayload(1, 2)
	proof, err := f.signer.SignEthereum(oracle.ProofMessage(12345, payload))
	c.Assert(err, qt.IsNil)
	c.Assert(f.ledger.HandleDecryptionResult(12345, payload, proof), qt.ErrorIs, ErrUnknownRequest)
}

func TestHandleDecryptionResultInvalidProof(t *testing.T) {
	f := newFixture(t)
	c := f.c

	id, err := f.ledger.CreateProposal("tamper", time.Hour, f.admin)
	c.Assert(err, qt.IsNil)
	c.Assert(f.vote(id, common.Address{1}, true), qt.IsNil)

	f.now = f.now.Add(2 * time.Hour)
	requestID, err := f.ledger.RequestTally(id, f.admin)
	c.Assert(err, qt.IsNil)

	payload, proof := f.answer(requestID)

	// Proof from a different signer
	stranger := ethereum.NewSignKeys()
	c.Assert(stranger.Generate(), qt.IsNil)
	badProof, err := stranger.SignEthereum(oracle.ProofMessage(requestID, payload))
	c.Assert(err, qt.IsNil)
	c.Assert(f.ledger.HandleDecryptionResult(requestID, payload, badProof), qt.ErrorIs, ErrInvalidProof)

	// Tampered payload no longer matches the signed message
	tampered := oracle.EncodeResultPayload(100, 0)
	c.Assert(f.ledger.HandleDecryptionResult(requestID, tampered, proof), qt.ErrorIs, ErrInvalidProof)

	// Garbage proof
	c.Assert(f.ledger.HandleDecryptionResult(requestID, payload, []byte{1, 2, 3}), qt.ErrorIs, ErrInvalidProof)

	// Nothing was published by any of the rejected deliveries
	res, err := f.ledger.Results(id)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Published, qt.IsFalse)

	// The genuine result still lands afterwards
	c.Assert(f.ledger.HandleDecryptionResult(requestID, payload, proof), qt.IsNil)
	res, err = f.ledger.Results(id)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Published, qt.IsTrue)
	c.Assert(res.For, qt.Equals, uint64(1))
}

func TestHandleDecryptionResultDecodeError(t *testing.T) {
	f := newFixture(t)
	c := f.c

	id, err := f.ledger.CreateProposal("short payload", time.Hour, f.admin)
	c.Assert(err, qt.IsNil)
	f.now = f.now.Add(2 * time.Hour)
	requestID, err := f.ledger.RequestTally(id, f.admin)
	c.Assert(err, qt.IsNil)

	// A correctly signed but malformed payload fails after proof
	// verification
	payload := []byte{1, 2, 3}
	proof, err := f.signer.SignEthereum(oracle.ProofMessage(requestID, payload))
	c.Assert(err, qt.IsNil)
	c.Assert(f.ledger.HandleDecryptionResult(requestID, payload, proof), qt.ErrorIs, ErrDecodeError)

	res, err := f.ledger.Results(id)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Published, qt.IsFalse)
}

func TestResultsNotFound(t *testing.T) {
	f := newFixture(t)
	c := f.c

	_, err := f.ledger.Results(1)
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestTallyOrderIndependence(t *testing.T) {
	f := newFixture(t)
	c := f.c

	// Two proposals receive the same multiset of votes in different
	// orders; the decrypted counts must match
	idA, err := f.ledger.CreateProposal("order A", time.Hour, f.admin)
	c.Assert(err, qt.IsNil)
	idB, err := f.ledger.CreateProposal("order B", time.Hour, f.admin)
	c.Assert(err, qt.IsNil)

	votes := []bool{true, false, true, true, false}
	for i, favor := range votes {
		c.Assert(f.vote(idA, common.Address{byte(i + 1)}, favor), qt.IsNil)
	}
	for i := len(votes) - 1; i >= 0; i-- {
		c.Assert(f.vote(idB, common.Address{byte(i + 1)}, votes[i]), qt.IsNil)
	}

	f.now = f.now.Add(2 * time.Hour)
	for _, id := range []uint64{idA, idB} {
		requestID, err := f.ledger.RequestTally(id, f.admin)
		c.Assert(err, qt.IsNil)
		payload, proof := f.answer(requestID)
		c.Assert(f.ledger.HandleDecryptionResult(requestID, payload, proof), qt.IsNil)
	}

	resA, err := f.ledger.Results(idA)
	c.Assert(err, qt.IsNil)
	resB, err := f.ledger.Results(idB)
	c.Assert(err, qt.IsNil)
	c.Assert(resA.For, qt.Equals, uint64(3))
	c.Assert(resA.Against, qt.Equals, uint64(2))
	c.Assert(resB.For, qt.Equals, resA.For)
	c.Assert(resB.Against, qt.Equals, resA.Against)
}

func TestEvents(t *testing.T) {
	f := newFixture(t)
	c := f.c

	events, cancel := f.ledger.Subscribe(16)
	defer cancel()

	id, err := f.ledger.CreateProposal("observable", time.Hour, f.admin)
	c.Assert(err, qt.IsNil)
	c.Assert(f.vote(id, common.Address{1}, true), qt.IsNil)

	f.now = f.now.Add(2 * time.Hour)
	requestID, err := f.ledger.RequestTally(id, f.admin)
	c.Assert(err, qt.IsNil)
	payload, proof := f.answer(requestID)
	c.Assert(f.ledger.HandleDecryptionResult(requestID, payload, proof), qt.IsNil)

	e := <-events
	c.Assert(e.Kind, qt.Equals, EventProposalCreated)
	c.Assert(e.ProposalID, qt.Equals, id)
	c.Assert(e.Creator, qt.Equals, f.admin)

	e = <-events
	c.Assert(e.Kind, qt.Equals, EventVoteCast)
	c.Assert(e.Voter, qt.Equals, common.Address{1})

	e = <-events
	c.Assert(e.Kind, qt.Equals, EventTallyRequested)
	c.Assert(e.RequestID, qt.Equals, requestID)

	e = <-events
	c.Assert(e.Kind, qt.Equals, EventResultsPublished)
	c.Assert(e.For, qt.Equals, uint64(1))
	c.Assert(e.Against, qt.Equals, uint64(0))
}
