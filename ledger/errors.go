package ledger

import "errors"

// Error taxonomy of the tally state machine. Every public operation fails
// with exactly one of these sentinels (possibly wrapped with context), and
// a failed operation leaves no partial state behind.
var (
	// ErrUnauthorized is returned when the caller lacks the privilege the
	// operation requires.
	ErrUnauthorized = errors.New("caller is not authorized")
	// ErrNotFound is returned when the referenced proposal does not exist.
	ErrNotFound = errors.New("proposal not found")
	// ErrInvalidInput is returned on malformed creation parameters.
	ErrInvalidInput = errors.New("invalid input")
	// ErrVotingClosed is returned when a vote arrives at or after the
	// proposal deadline.
	ErrVotingClosed = errors.New("voting is closed")
	// ErrVotingStillOpen is returned when a tally is requested before the
	// proposal deadline.
	ErrVotingStillOpen = errors.New("voting is still open")
	// ErrDuplicateVote is returned when the voter already holds a vote
	// record for the proposal.
	ErrDuplicateVote = errors.New("voter already voted")
	// ErrAlreadyFinalized is returned on any mutation attempt after the
	// results have been published.
	ErrAlreadyFinalized = errors.New("results already finalized")
	// ErrUnknownRequest is returned when a decryption result references a
	// request identifier with no recorded correlation.
	ErrUnknownRequest = errors.New("unknown decryption request")
	// ErrInvalidProof is returned when the authenticity proof of a
	// decryption result does not verify.
	ErrInvalidProof = errors.New("invalid authenticity proof")
	// ErrDecodeError is returned when a decrypted result payload is
	// malformed.
	ErrDecodeError = errors.New("malformed result payload")
)
