package types

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Proposal is the public snapshot of a ballot proposal. The encrypted
// running tallies are exposed only in their opaque transport form; the
// plaintext final counts are meaningful only once ResultsPublished is true.
type Proposal struct {
	ID               uint64         `json:"id"               cbor:"0,keyasint"`
	Description      string         `json:"description"      cbor:"1,keyasint"`
	Creator          common.Address `json:"creator"          cbor:"2,keyasint"`
	VotingDeadline   time.Time      `json:"votingDeadline"   cbor:"3,keyasint"`
	ResultsPublished bool           `json:"resultsPublished" cbor:"4,keyasint"`
	CurveType        string         `json:"curveType"        cbor:"5,keyasint"`
	EncryptedFor     HexBytes       `json:"encryptedFor"     cbor:"6,keyasint"`
	EncryptedAgainst HexBytes       `json:"encryptedAgainst" cbor:"7,keyasint"`
	FinalFor         uint64         `json:"finalFor"         cbor:"8,keyasint"`
	FinalAgainst     uint64         `json:"finalAgainst"     cbor:"9,keyasint"`
}

func (p *Proposal) String() string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(data)
}

// Open reports whether the proposal still accepts votes at the given time.
// The deadline itself is already closed.
func (p *Proposal) Open(now time.Time) bool {
	return now.Before(p.VotingDeadline)
}

// Results is the plaintext outcome of a proposal. For and Against are zero
// until Published is true.
type Results struct {
	ProposalID uint64 `json:"proposalId"`
	For        uint64 `json:"for"`
	Against    uint64 `json:"against"`
	Published  bool   `json:"published"`
}
