package storage

import (
	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/sealedvote/tally/types"
)

// voteRecordKey builds the key of the (proposal, voter) vote record.
func voteRecordKey(proposalID uint64, voter common.Address) []byte {
	return append(u64Key(proposalID), voter.Bytes()...)
}

// HasVoted reports whether the voter already holds a vote record for the
// proposal. The record carries no information beyond its existence.
func (s *Storage) HasVoted(proposalID uint64, voter common.Address) (bool, error) {
	return s.hasKey(voteRecordPrefix, voteRecordKey(proposalID, voter))
}

// CastVote atomically marks the voter as having voted and stores the
// proposal with its updated encrypted running sums. Both writes share a
// single transaction so a failure leaves no partial state behind.
func (s *Storage) CastVote(p *types.Proposal, voter common.Address) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	val, err := encodeArtifact(p)
	if err != nil {
		return err
	}
	tx := s.db.WriteTx()
	recordTx := prefixeddb.NewPrefixedWriteTx(tx, voteRecordPrefix)
	if err := recordTx.Set(voteRecordKey(p.ID, voter), []byte{1}); err != nil {
		tx.Discard()
		return err
	}
	proposalTx := prefixeddb.NewPrefixedWriteTx(tx, proposalPrefix)
	if err := proposalTx.Set(u64Key(p.ID), val); err != nil {
		tx.Discard()
		return err
	}
	return tx.Commit()
}
