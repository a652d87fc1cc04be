// Package storage persists the artifacts of the confidential tally: the
// proposals with their encrypted running sums, the per-voter vote records,
// and the decryption request correlations. It is a prefixed key-value store
// where every artifact kind lives under its own namespace:
//   - 'm/' for metadata (the proposal counter)
//   - 'p/' for proposals
//   - 'vr/' for vote records
//   - 'dr/' for decryption request correlations
//
// The store is append/overwrite only: no artifact is ever deleted, which
// keeps the audit trail of a proposal complete from creation to
// finalization.
package storage

import (
	"errors"
	"sync"

	"go.vocdoni.io/dvote/db"
)

var (
	// Prefixes for the keys in the database.
	metadataPrefix    = []byte("m/")
	proposalPrefix    = []byte("p/")
	voteRecordPrefix  = []byte("vr/")
	correlationPrefix = []byte("dr/")
)

// proposalCountKey holds the number of proposals created so far, under the
// metadata prefix.
var proposalCountKey = []byte("proposalCount")

// ErrNotFound is returned when the artifact is not found in the storage.
var ErrNotFound = errors.New("artifact not found")

// Storage wraps the underlying key-value database with typed accessors for
// the tally artifacts.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
}

// New creates a new Storage instance.
func New(database db.Database) *Storage {
	return &Storage{db: database}
}

// Close closes the storage.
func (s *Storage) Close() {
	s.db.Close()
}
