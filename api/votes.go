package api

import (
	"encoding/json"
	"net/http"

	"github.com/sealedvote/tally/crypto/ecc/curves"
	"github.com/sealedvote/tally/crypto/elgamal"
	"github.com/sealedvote/tally/crypto/ethereum"
)

// castVote submits an encrypted vote for a proposal
// POST /proposals/{proposalId}/votes
func (a *API) castVote(w http.ResponseWriter, r *http.Request) {
	id, err := urlProposalID(r)
	if err != nil {
		ErrMalformedProposalID.WithErr(err).Write(w)
		return
	}
	req := &VoteRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}

	// Extract the voter address from the signature over the ciphertexts
	voter, err := ethereum.AddrFromSignature(VoteMessage(id, req.EncryptedFor, req.EncryptedAgainst), req.Signature)
	if err != nil {
		ErrInvalidSignature.Withf("could not extract address from signature: %v", err).Write(w)
		return
	}

	// Deserialize the ciphertext handles on the deployment curve
	curve, err := curves.New(a.ledger.EncryptionKey().Type())
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	encFor := elgamal.NewCiphertext(curve)
	if err := encFor.Deserialize(req.EncryptedFor); err != nil {
		ErrInvalidInput.Withf("could not deserialize for ciphertext: %v", err).Write(w)
		return
	}
	encAgainst := elgamal.NewCiphertext(curve)
	if err := encAgainst.Deserialize(req.EncryptedAgainst); err != nil {
		ErrInvalidInput.Withf("could not deserialize against ciphertext: %v", err).Write(w)
		return
	}

	if err := a.ledger.CastVote(id, encFor, encAgainst, voter); err != nil {
		fromLedgerError(err).Write(w)
		return
	}
	httpWriteOK(w)
}
