// Package oracle defines the boundary contract between the tally ledger
// and the external decryption oracle: the request submission interface, the
// asynchronous result callback, and the payload and proof formats both
// sides agree on. It also provides Local, an in-process oracle used by the
// daemon and the tests.
package oracle

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/sealedvote/tally/types"
)

// Decryptor submits encrypted tallies for out-of-band decryption. The
// returned request identifier correlates the eventual result callback with
// the submission; the call itself never blocks waiting for the result.
type Decryptor interface {
	RequestDecryption(ciphertexts [][]byte) (uint64, error)
}

// ResultSink consumes asynchronous decryption results. The ledger
// implements it; the oracle invokes it once per answered request, on its
// own goroutine.
type ResultSink interface {
	HandleDecryptionResult(requestID uint64, payload, proof []byte) error
}

// ProofMessage builds the byte string the oracle signs over: the request
// identifier as a big-endian 64-bit word followed by the payload. Binding
// the identifier into the signature prevents replaying a valid payload
// under a different request.
func ProofMessage(requestID uint64, payload []byte) []byte {
	msg := make([]byte, 8, 8+len(payload))
	binary.BigEndian.PutUint64(msg, requestID)
	return append(msg, payload...)
}

// EncodeResultPayload encodes a decrypted tally pair as the payload wire
// form: two big-endian 32-byte unsigned integers, for-count first.
func EncodeResultPayload(forCount, againstCount uint64) []byte {
	payload := make([]byte, types.ResultWords*types.ResultWordSize)
	new(big.Int).SetUint64(forCount).FillBytes(payload[:types.ResultWordSize])
	new(big.Int).SetUint64(againstCount).FillBytes(payload[types.ResultWordSize:])
	return payload
}

// DecodeResultPayload decodes a payload produced by EncodeResultPayload.
// It returns an error if the payload has the wrong shape or if either
// count does not fit an unsigned 64-bit integer.
func DecodeResultPayload(payload []byte) (forCount, againstCount uint64, err error) {
	if len(payload) != types.ResultWords*types.ResultWordSize {
		return 0, 0, fmt.Errorf("invalid payload length: got %d bytes, expected %d",
			len(payload), types.ResultWords*types.ResultWordSize)
	}
	words := make([]uint64, types.ResultWords)
	for i := range words {
		w := new(big.Int).SetBytes(payload[i*types.ResultWordSize : (i+1)*types.ResultWordSize])
		if !w.IsUint64() {
			return 0, 0, fmt.Errorf("result word %d out of range", i)
		}
		words[i] = w.Uint64()
	}
	return words[0], words[1], nil
}
