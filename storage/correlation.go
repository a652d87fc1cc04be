package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// SetDecryptionRequest records the correlation between an oracle-issued
// request identifier and the proposal awaiting its result. Correlations are
// never deleted; a request that is never answered is simply inert.
func (s *Storage) SetDecryptionRequest(requestID, proposalID uint64) error {
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), correlationPrefix)
	if err := wTx.Set(u64Key(requestID), u64Key(proposalID)); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// DecryptionRequest resolves a request identifier back to its proposal
// identifier. It returns ErrNotFound for identifiers that were never
// recorded.
func (s *Storage) DecryptionRequest(requestID uint64) (uint64, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, correlationPrefix)
	data, err := rd.Get(u64Key(requestID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("get decryption request: %w", err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("malformed correlation entry for request %d", requestID)
	}
	return binary.BigEndian.Uint64(data), nil
}
