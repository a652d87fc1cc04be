package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sealedvote/tally/crypto/ethereum"
	"github.com/sealedvote/tally/types"
)

// createProposal creates a new proposal
// POST /proposals
func (a *API) createProposal(w http.ResponseWriter, r *http.Request) {
	req := &CreateProposalRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}

	// Extract the caller address from the signature
	caller, err := ethereum.AddrFromSignature(CreateProposalMessage(req.Nonce, req.Description), req.Signature)
	if err != nil {
		ErrInvalidSignature.Withf("could not extract address from signature: %v", err).Write(w)
		return
	}

	duration := time.Duration(req.DurationSeconds) * time.Second
	id, err := a.ledger.CreateProposal(req.Description, duration, caller)
	if err != nil {
		fromLedgerError(err).Write(w)
		return
	}
	httpWriteJSON(w, &CreateProposalResponse{ProposalID: id})
}

// proposal returns the proposal snapshot
// GET /proposals/{proposalId}
func (a *API) proposal(w http.ResponseWriter, r *http.Request) {
	id, err := urlProposalID(r)
	if err != nil {
		ErrMalformedProposalID.WithErr(err).Write(w)
		return
	}
	p, err := a.ledger.Proposal(id)
	if err != nil {
		fromLedgerError(err).Write(w)
		return
	}
	httpWriteJSON(w, p)
}

// encryptionKey returns the public key votes must be encrypted under
// GET /encryption-key
func (a *API) encryptionKey(w http.ResponseWriter, _ *http.Request) {
	pubKey := a.ledger.EncryptionKey()
	x, y := pubKey.Point()
	httpWriteJSON(w, &EncryptionKeyResponse{
		CurveType: pubKey.Type(),
		X:         (*types.BigInt)(x),
		Y:         (*types.BigInt)(y),
	})
}
