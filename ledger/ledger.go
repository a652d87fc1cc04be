// Package ledger implements the confidential proposal/vote/tally state
// machine. A proposal moves through Created → Open → Closed →
// TallyRequested → Finalized; individual vote values stay encrypted end to
// end, only the homomorphic aggregate is ever decrypted, out of band, by
// the decryption oracle. Every public operation is a serialized atomic
// transition: it either completes or fails with one of the package's
// sentinel errors leaving no partial state.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/log"

	"github.com/sealedvote/tally/crypto/ecc"
	"github.com/sealedvote/tally/crypto/ecc/curves"
	"github.com/sealedvote/tally/crypto/elgamal"
	"github.com/sealedvote/tally/crypto/ethereum"
	"github.com/sealedvote/tally/oracle"
	"github.com/sealedvote/tally/storage"
	"github.com/sealedvote/tally/types"
)

// AuthPolicy decides whether a caller may create proposals. Injecting the
// policy keeps the ledger testable without a live privileged-identity
// mechanism.
type AuthPolicy func(caller common.Address) bool

// AdminOnly returns the single-administrator policy: only the given
// address may create proposals.
func AdminOnly(admin common.Address) AuthPolicy {
	return func(caller common.Address) bool {
		return caller == admin
	}
}

// Config collects the collaborators of a Ledger.
type Config struct {
	// Storage persists proposals, vote records and request correlations.
	Storage *storage.Storage
	// Decryptor is the submission side of the decryption oracle.
	Decryptor oracle.Decryptor
	// EncryptionKey is the ElGamal public key votes are encrypted under;
	// it is also used to mint the encrypted zeros of new proposals.
	EncryptionKey ecc.Point
	// OracleAddress authenticates decryption results: the proof signature
	// must recover to this address.
	OracleAddress common.Address
	// CreateAuth gates proposal creation.
	CreateAuth AuthPolicy
	// Now returns the current time. Defaults to time.Now; tests inject a
	// manual clock to exercise the deadline boundaries.
	Now func() time.Time
}

// Ledger is the confidential tally state machine.
type Ledger struct {
	mu         sync.Mutex
	store      *storage.Storage
	decryptor  oracle.Decryptor
	pubKey     ecc.Point
	oracleAddr common.Address
	auth       AuthPolicy
	now        func() time.Time
	feed       *eventFeed
}

// New creates a Ledger from the given configuration.
func New(cfg Config) (*Ledger, error) {
	if cfg.Storage == nil {
		return nil, fmt.Errorf("missing storage")
	}
	if cfg.Decryptor == nil {
		return nil, fmt.Errorf("missing decryptor")
	}
	if cfg.EncryptionKey == nil {
		return nil, fmt.Errorf("missing encryption key")
	}
	if cfg.CreateAuth == nil {
		return nil, fmt.Errorf("missing authorization policy")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		store:      cfg.Storage,
		decryptor:  cfg.Decryptor,
		pubKey:     cfg.EncryptionKey,
		oracleAddr: cfg.OracleAddress,
		auth:       cfg.CreateAuth,
		now:        now,
		feed:       newEventFeed(),
	}, nil
}

// EncryptionKey returns the public key votes must be encrypted under.
func (l *Ledger) EncryptionKey() ecc.Point {
	return l.pubKey
}

// CreateProposal allocates the next sequential proposal identifier and
// stores a new proposal with both encrypted tallies initialized to fresh
// encryptions of zero. Only callers accepted by the authorization policy
// may create proposals, and the voting duration must be positive.
func (l *Ledger) CreateProposal(description string, votingDuration time.Duration, caller common.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.auth(caller) {
		return 0, fmt.Errorf("%w: %s cannot create proposals", ErrUnauthorized, caller)
	}
	if votingDuration <= 0 {
		return 0, fmt.Errorf("%w: voting duration must be positive", ErrInvalidInput)
	}

	encFor, err := elgamal.EncryptZero(l.pubKey)
	if err != nil {
		return 0, fmt.Errorf("encrypt zero tally: %w", err)
	}
	encAgainst, err := elgamal.EncryptZero(l.pubKey)
	if err != nil {
		return 0, fmt.Errorf("encrypt zero tally: %w", err)
	}

	id, err := l.store.NextProposalID()
	if err != nil {
		return 0, fmt.Errorf("allocate proposal id: %w", err)
	}
	deadline := l.now().Add(votingDuration)
	p := &types.Proposal{
		ID:               id,
		Description:      description,
		Creator:          caller,
		VotingDeadline:   deadline,
		CurveType:        l.pubKey.Type(),
		EncryptedFor:     encFor.Serialize(),
		EncryptedAgainst: encAgainst.Serialize(),
	}
	if err := l.store.SetProposal(p); err != nil {
		return 0, fmt.Errorf("store proposal: %w", err)
	}

	log.Infow("proposal created", "id", id, "creator", caller.String(),
		"deadline", deadline.String())
	l.feed.publish(Event{
		Kind:        EventProposalCreated,
		ProposalID:  id,
		Creator:     caller,
		Description: description,
		Deadline:    deadline,
	})
	return id, nil
}

// Proposal returns a read-only snapshot of the proposal. It fails with
// ErrNotFound if the identifier is 0 or was never allocated.
func (l *Ledger) Proposal(id uint64) (*types.Proposal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.proposal(id)
}

// ListProposals returns the identifiers of all proposals in ascending
// order.
func (l *Ledger) ListProposals() ([]uint64, error) {
	return l.store.ListProposalIDs()
}

// CastVote folds one encrypted vote into the proposal's running tallies.
// The two ciphertexts are the voter's encrypted single-bit indicators, for
// and against; the ledger cannot and does not validate that exactly one of
// them encrypts 1 — that guarantee belongs to the encrypting client and
// whatever proof scheme is layered on top. Preconditions are checked in
// order: the proposal must exist, voting must still be open, the voter must
// not have voted before, and the results must not be published.
func (l *Ledger) CastVote(proposalID uint64, encFor, encAgainst *elgamal.Ciphertext, voter common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if encFor == nil || encAgainst == nil {
		return fmt.Errorf("%w: missing vote ciphertexts", ErrInvalidInput)
	}
	p, err := l.proposal(proposalID)
	if err != nil {
		return err
	}
	if !p.Open(l.now()) {
		return fmt.Errorf("%w: proposal %d deadline was %s", ErrVotingClosed, proposalID, p.VotingDeadline)
	}
	voted, err := l.store.HasVoted(proposalID, voter)
	if err != nil {
		return fmt.Errorf("check vote record: %w", err)
	}
	if voted {
		return fmt.Errorf("%w: %s on proposal %d", ErrDuplicateVote, voter, proposalID)
	}
	// Unreachable while finalization is gated on the deadline, but results
	// could be published pre-deadline by a misconfigured deployment.
	if p.ResultsPublished {
		return fmt.Errorf("%w: proposal %d", ErrAlreadyFinalized, proposalID)
	}

	runningFor, runningAgainst, err := l.runningTallies(p)
	if err != nil {
		return err
	}
	runningFor.Add(runningFor, encFor)
	runningAgainst.Add(runningAgainst, encAgainst)
	p.EncryptedFor = runningFor.Serialize()
	p.EncryptedAgainst = runningAgainst.Serialize()

	if err := l.store.CastVote(p, voter); err != nil {
		return fmt.Errorf("store vote: %w", err)
	}

	log.Debugw("vote cast", "proposalId", proposalID, "voter", voter.String())
	// The event deliberately omits the vote's direction.
	l.feed.publish(Event{
		Kind:       EventVoteCast,
		ProposalID: proposalID,
		Voter:      voter,
	})
	return nil
}

// RequestTally freezes nothing by itself — voting is already deadline-gated
// shut — but packages the proposal's encrypted tallies, submits them to the
// decryption oracle and records the request correlation. Any caller may
// invoke it once the deadline has passed, and it may be invoked repeatedly
// (for example after a dropped submission); each call produces its own
// independent correlation entry. Double application of results is prevented
// by the one-time finalization guard, not here.
func (l *Ledger) RequestTally(proposalID uint64, caller common.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.proposal(proposalID)
	if err != nil {
		return 0, err
	}
	if p.Open(l.now()) {
		return 0, fmt.Errorf("%w: proposal %d closes at %s", ErrVotingStillOpen, proposalID, p.VotingDeadline)
	}
	if p.ResultsPublished {
		return 0, fmt.Errorf("%w: proposal %d", ErrAlreadyFinalized, proposalID)
	}

	requestID, err := l.decryptor.RequestDecryption([][]byte{p.EncryptedFor, p.EncryptedAgainst})
	if err != nil {
		return 0, fmt.Errorf("submit decryption request: %w", err)
	}
	if err := l.store.SetDecryptionRequest(requestID, proposalID); err != nil {
		return 0, fmt.Errorf("store request correlation: %w", err)
	}

	log.Infow("tally requested", "proposalId", proposalID,
		"requestId", requestID, "caller", caller.String())
	l.feed.publish(Event{
		Kind:       EventTallyRequested,
		ProposalID: proposalID,
		RequestID:  requestID,
	})
	return requestID, nil
}

// HandleDecryptionResult consumes an asynchronous decryption result from
// the oracle and, exactly once per proposal, commits the plaintext counts
// as the final published results. The authenticity proof is verified
// before any decoded value is trusted.
func (l *Ledger) HandleDecryptionResult(requestID uint64, payload, proof []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	proposalID, err := l.store.DecryptionRequest(requestID)
	if err != nil || proposalID == 0 {
		return fmt.Errorf("%w: %d", ErrUnknownRequest, requestID)
	}
	p, err := l.proposal(proposalID)
	if err != nil {
		return fmt.Errorf("%w: request %d references proposal %d", ErrUnknownRequest, requestID, proposalID)
	}
	if p.ResultsPublished {
		return fmt.Errorf("%w: proposal %d", ErrAlreadyFinalized, proposalID)
	}
	signer, err := ethereum.AddrFromSignature(oracle.ProofMessage(requestID, payload), proof)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	if signer != l.oracleAddr {
		return fmt.Errorf("%w: signed by %s, expected %s", ErrInvalidProof, signer, l.oracleAddr)
	}
	forCount, againstCount, err := oracle.DecodeResultPayload(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeError, err)
	}

	p.FinalFor = forCount
	p.FinalAgainst = againstCount
	p.ResultsPublished = true
	if err := l.store.SetProposal(p); err != nil {
		return fmt.Errorf("store final results: %w", err)
	}

	log.Infow("results published", "proposalId", proposalID,
		"for", forCount, "against", againstCount)
	l.feed.publish(Event{
		Kind:       EventResultsPublished,
		ProposalID: proposalID,
		For:        forCount,
		Against:    againstCount,
	})
	return nil
}

// Results returns the plaintext outcome of a proposal. A proposal that
// exists but is not yet finalized yields zero counts with Published false;
// only an invalid identifier fails.
func (l *Ledger) Results(proposalID uint64) (*types.Results, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.proposal(proposalID)
	if err != nil {
		return nil, err
	}
	r := &types.Results{ProposalID: proposalID, Published: p.ResultsPublished}
	if p.ResultsPublished {
		r.For = p.FinalFor
		r.Against = p.FinalAgainst
	}
	return r, nil
}

// proposal loads a proposal mapping storage misses to ErrNotFound. It must
// be called with the ledger lock held.
func (l *Ledger) proposal(id uint64) (*types.Proposal, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: id 0 is reserved", ErrNotFound)
	}
	p, err := l.store.Proposal(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("load proposal %d: %w", id, err)
	}
	return p, nil
}

// runningTallies deserializes the proposal's encrypted running sums into
// ciphertext handles on the proposal's curve.
func (l *Ledger) runningTallies(p *types.Proposal) (*elgamal.Ciphertext, *elgamal.Ciphertext, error) {
	curve, err := curves.New(p.CurveType)
	if err != nil {
		return nil, nil, fmt.Errorf("proposal %d: %w", p.ID, err)
	}
	runningFor := elgamal.NewCiphertext(curve)
	if err := runningFor.Deserialize(p.EncryptedFor); err != nil {
		return nil, nil, fmt.Errorf("deserialize for tally: %w", err)
	}
	runningAgainst := elgamal.NewCiphertext(curve)
	if err := runningAgainst.Deserialize(p.EncryptedAgainst); err != nil {
		return nil, nil, fmt.Errorf("deserialize against tally: %w", err)
	}
	return runningFor, runningAgainst, nil
}
