package api

import (
	"fmt"

	"github.com/sealedvote/tally/types"
)

// CreateProposalRequest is the body of POST /proposals. The caller address
// is recovered from the signature, which must cover
// CreateProposalMessage(nonce, description).
type CreateProposalRequest struct {
	Description     string         `json:"description"`
	DurationSeconds uint64         `json:"durationSeconds"`
	Nonce           uint64         `json:"nonce"`
	Signature       types.HexBytes `json:"signature"`
}

// CreateProposalResponse is the response of POST /proposals.
type CreateProposalResponse struct {
	ProposalID uint64 `json:"proposalId"`
}

// VoteRequest is the body of POST /proposals/{proposalId}/votes. The two
// ciphertexts are the transport form of the encrypted single-bit
// indicators. The voter address is recovered from the signature, which
// must cover VoteMessage(proposalID, encryptedFor, encryptedAgainst).
type VoteRequest struct {
	EncryptedFor     types.HexBytes `json:"encryptedFor"`
	EncryptedAgainst types.HexBytes `json:"encryptedAgainst"`
	Signature        types.HexBytes `json:"signature"`
}

// TallyResponse is the response of POST /proposals/{proposalId}/tally.
type TallyResponse struct {
	ProposalID uint64 `json:"proposalId"`
	RequestID  uint64 `json:"requestId"`
}

// EncryptionKeyResponse is the response of GET /encryption-key. Clients
// encrypt their vote indicators under this key.
type EncryptionKeyResponse struct {
	CurveType string        `json:"curveType"`
	X         *types.BigInt `json:"x"`
	Y         *types.BigInt `json:"y"`
}

// DecryptionResultRequest is the body of POST /decryption, delivered by
// the decryption oracle.
type DecryptionResultRequest struct {
	RequestID uint64         `json:"requestId"`
	Payload   types.HexBytes `json:"payload"`
	Proof     types.HexBytes `json:"proof"`
}

// CreateProposalMessage builds the byte string a proposal creator signs.
func CreateProposalMessage(nonce uint64, description string) []byte {
	return []byte(fmt.Sprintf("%d%s", nonce, description))
}

// VoteMessage builds the byte string a voter signs, binding the vote
// ciphertexts to the proposal.
func VoteMessage(proposalID uint64, encryptedFor, encryptedAgainst []byte) []byte {
	return []byte(fmt.Sprintf("%d%x%x", proposalID, encryptedFor, encryptedAgainst))
}
