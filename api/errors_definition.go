//nolint:lll
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sealedvote/tally/ledger"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400, 401, 403, 404 or 409, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after
// the current last 4XXX or 5XXX. If you notice there's a gap, DON'T fill it
// in, that code was used in the past for some error and shouldn't be reused.
var (
	ErrResourceNotFound    = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody       = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrInvalidSignature    = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid signature")}
	ErrMalformedProposalID = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed proposal ID")}
	ErrProposalNotFound    = Error{Code: 40007, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("proposal not found")}
	ErrUnauthorized        = Error{Code: 40008, HTTPstatus: http.StatusUnauthorized, Err: fmt.Errorf("caller is not authorized")}
	ErrInvalidInput        = Error{Code: 40009, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid input")}
	ErrVotingClosed        = Error{Code: 40010, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("voting is closed")}
	ErrVotingStillOpen     = Error{Code: 40011, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("voting is still open")}
	ErrDuplicateVote       = Error{Code: 40012, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("voter already voted")}
	ErrAlreadyFinalized    = Error{Code: 40013, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("results already finalized")}
	ErrUnknownRequest      = Error{Code: 40014, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("unknown decryption request")}
	ErrInvalidProof        = Error{Code: 40015, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("invalid authenticity proof")}
	ErrDecodeError         = Error{Code: 40016, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed result payload")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
)

// fromLedgerError maps a ledger sentinel error to its API error, keeping
// the ledger's message as detail. Unrecognized errors become the generic
// internal server error.
func fromLedgerError(err error) Error {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		return ErrUnauthorized.WithErr(err)
	case errors.Is(err, ledger.ErrNotFound):
		return ErrProposalNotFound.WithErr(err)
	case errors.Is(err, ledger.ErrInvalidInput):
		return ErrInvalidInput.WithErr(err)
	case errors.Is(err, ledger.ErrVotingClosed):
		return ErrVotingClosed.WithErr(err)
	case errors.Is(err, ledger.ErrVotingStillOpen):
		return ErrVotingStillOpen.WithErr(err)
	case errors.Is(err, ledger.ErrDuplicateVote):
		return ErrDuplicateVote.WithErr(err)
	case errors.Is(err, ledger.ErrAlreadyFinalized):
		return ErrAlreadyFinalized.WithErr(err)
	case errors.Is(err, ledger.ErrUnknownRequest):
		return ErrUnknownRequest.WithErr(err)
	case errors.Is(err, ledger.ErrInvalidProof):
		return ErrInvalidProof.WithErr(err)
	case errors.Is(err, ledger.ErrDecodeError):
		return ErrDecodeError.WithErr(err)
	default:
		return ErrGenericInternalServerError.WithErr(err)
	}
}
