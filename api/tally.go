package api

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// requestTally asks the decryption oracle to open a closed proposal's
// encrypted tallies
// POST /proposals/{proposalId}/tally
func (a *API) requestTally(w http.ResponseWriter, r *http.Request) {
	id, err := urlProposalID(r)
	if err != nil {
		ErrMalformedProposalID.WithErr(err).Write(w)
		return
	}
	// Requesting a tally is permissionless once the deadline has passed,
	// so the caller identity is informational only.
	requestID, err := a.ledger.RequestTally(id, common.Address{})
	if err != nil {
		fromLedgerError(err).Write(w)
		return
	}
	httpWriteJSON(w, &TallyResponse{ProposalID: id, RequestID: requestID})
}

// results returns the plaintext outcome of a proposal. Until the oracle
// callback finalizes the proposal, counts are zero and published is false.
// GET /proposals/{proposalId}/results
func (a *API) results(w http.ResponseWriter, r *http.Request) {
	id, err := urlProposalID(r)
	if err != nil {
		ErrMalformedProposalID.WithErr(err).Write(w)
		return
	}
	res, err := a.ledger.Results(id)
	if err != nil {
		fromLedgerError(err).Write(w)
		return
	}
	httpWriteJSON(w, res)
}

// decryptionResult receives an asynchronous decryption result from the
// oracle. The proof is verified by the ledger before anything is committed.
// POST /decryption
func (a *API) decryptionResult(w http.ResponseWriter, r *http.Request) {
	req := &DecryptionResultRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if err := a.ledger.HandleDecryptionResult(req.RequestID, req.Payload, req.Proof); err != nil {
		fromLedgerError(err).Write(w)
		return
	}
	httpWriteOK(w)
}
