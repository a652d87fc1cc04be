package curves

import (
	"fmt"

	"github.com/sealedvote/tally/crypto/ecc"
	bjj "github.com/sealedvote/tally/crypto/ecc/bjj_iden3"
	"github.com/sealedvote/tally/crypto/ecc/bn254"
)

const (
	// CurveTypeBabyJubJub is the default curve for vote ciphertexts.
	CurveTypeBabyJubJub = bjj.CurveType
	// CurveTypeBN254 is the BN254 G1 group.
	CurveTypeBN254 = bn254.CurveType
)

// New creates a new instance of a curve point implementation based on the
// provided type string. The supported types are defined as constants in
// this package.
func New(curveType string) (ecc.Point, error) {
	switch curveType {
	case CurveTypeBabyJubJub:
		return bjj.New(), nil
	case CurveTypeBN254:
		return bn254.New(), nil
	default:
		return nil, fmt.Errorf("unsupported curve type: %s", curveType)
	}
}

// Curves returns the list of supported curve types.
func Curves() []string {
	return []string{CurveTypeBabyJubJub, CurveTypeBN254}
}
