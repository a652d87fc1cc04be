package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/sealedvote/tally/types"
)

// CountProposals returns the number of proposals created so far. Proposal
// identifiers are assigned sequentially starting at 1, so this is also the
// highest identifier in use.
func (s *Storage) CountProposals() (uint64, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, metadataPrefix)
	data, err := rd.Get(proposalCountKey)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get proposal count: %w", err)
	}
	return binary.BigEndian.Uint64(data), nil
}

// NextProposalID allocates and returns the next sequential proposal
// identifier. The first allocated identifier is 1; 0 is reserved to mean
// "does not exist".
func (s *Storage) NextProposalID() (uint64, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	count, err := s.CountProposals()
	if err != nil {
		return 0, err
	}
	next := count + 1
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), metadataPrefix)
	if err := wTx.Set(proposalCountKey, u64Key(next)); err != nil {
		wTx.Discard()
		return 0, err
	}
	if err := wTx.Commit(); err != nil {
		return 0, err
	}
	return next, nil
}

// SetProposal stores a proposal, overwriting any previous version.
func (s *Storage) SetProposal(p *types.Proposal) error {
	if p == nil {
		return fmt.Errorf("nil proposal")
	}
	if p.ID == 0 {
		return fmt.Errorf("proposal id 0 is reserved")
	}
	return s.setArtifact(proposalPrefix, u64Key(p.ID), p)
}

// Proposal retrieves a proposal by identifier. It returns ErrNotFound if
// the identifier was never allocated.
func (s *Storage) Proposal(id uint64) (*types.Proposal, error) {
	p := &types.Proposal{}
	if err := s.getArtifact(proposalPrefix, u64Key(id), p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListProposalIDs returns the identifiers of all stored proposals in
// ascending order.
func (s *Storage) ListProposalIDs() ([]uint64, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, proposalPrefix)
	var ids []uint64
	if err := rd.Iterate(nil, func(k, _ []byte) bool {
		if len(k) == 8 {
			ids = append(ids, binary.BigEndian.Uint64(k))
		}
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate proposals: %w", err)
	}
	return ids, nil
}
