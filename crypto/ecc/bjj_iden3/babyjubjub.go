package bjj

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/fxamacker/cbor/v2"
	babyjubjub "github.com/iden3/go-iden3-crypto/babyjub"

	curve "github.com/sealedvote/tally/crypto/ecc"
	"github.com/sealedvote/tally/types"
)

const CurveType = "bjj_iden3"

// BJJ is the affine representation of a BabyJubJub group element.
type BJJ struct {
	inner *babyjubjub.Point
	lock  sync.Mutex
}

// New creates a new BJJ point (identity element by default).
func New() curve.Point {
	return &BJJ{inner: babyjubjub.NewPoint()}
}

func (p *BJJ) New() curve.Point {
	return &BJJ{inner: babyjubjub.NewPoint()}
}

func (p *BJJ) Order() *big.Int {
	return babyjubjub.SubOrder
}

func (p *BJJ) Add(a, b curve.Point) {
	p.inner = p.inner.Projective().Add(a.(*BJJ).inner.Projective(), b.(*BJJ).inner.Projective()).Affine()
}

func (p *BJJ) SafeAdd(a, b curve.Point) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.Add(a, b)
}

func (p *BJJ) ScalarMult(a curve.Point, scalar *big.Int) {
	p.inner = p.inner.Mul(scalar, a.(*BJJ).inner)
}

func (p *BJJ) ScalarBaseMult(scalar *big.Int) {
	p.inner = p.inner.Mul(scalar, babyjubjub.B8)
}

func (p *BJJ) Marshal() []byte {
	b := p.inner.Compress()
	return b[:]
}

func (p *BJJ) Unmarshal(buf []byte) error {
	b32 := [32]byte{}
	copy(b32[:], buf)
	_, err := p.inner.Decompress(b32)
	return err
}

// MarshalJSON serializes the elliptic curve element into a JSON byte slice.
func (p *BJJ) MarshalJSON() ([]byte, error) {
	return json.Marshal([]*types.BigInt{(*types.BigInt)(p.inner.X), (*types.BigInt)(p.inner.Y)})
}

// UnmarshalJSON deserializes the elliptic curve element from a JSON byte slice.
func (p *BJJ) UnmarshalJSON(buf []byte) error {
	if p.inner == nil {
		p.inner = babyjubjub.NewPoint()
	}
	var coords []*types.BigInt
	if err := json.Unmarshal(buf, &coords); err != nil {
		return err
	}
	if len(coords) != 2 {
		return fmt.Errorf("expected 2 coordinates, got %d", len(coords))
	}
	p.inner.X = coords[0].MathBigInt()
	p.inner.Y = coords[1].MathBigInt()
	return nil
}

func (p *BJJ) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal([]*big.Int{p.inner.X, p.inner.Y})
}

func (p *BJJ) UnmarshalCBOR(buf []byte) error {
	if p.inner == nil {
		p.inner = babyjubjub.NewPoint()
	}
	var coords []*big.Int
	if err := cbor.Unmarshal(buf, &coords); err != nil {
		return err
	}
	if len(coords) != 2 {
		return fmt.Errorf("expected 2 coordinates, got %d", len(coords))
	}
	p.inner.X = coords[0]
	p.inner.Y = coords[1]
	return nil
}

func (p *BJJ) Equal(a curve.Point) bool {
	return p.inner.X.Cmp(a.(*BJJ).inner.X) == 0 && p.inner.Y.Cmp(a.(*BJJ).inner.Y) == 0
}

func (p *BJJ) Neg(a curve.Point) {
	proj := a.(*BJJ).inner.Projective()
	proj.X = proj.X.Neg(proj.X)
	aff := proj.Affine()
	p.inner.X = p.inner.X.Set(aff.X)
	p.inner.Y = p.inner.Y.Set(aff.Y)
}

func (p *BJJ) SetZero() {
	proj := p.inner.Projective()
	proj.X.SetZero()
	proj.Y.SetOne()
	proj.Z.SetOne()
	p.inner = proj.Affine()
}

func (p *BJJ) Set(a curve.Point) {
	p.inner.X = p.inner.X.Set(a.(*BJJ).inner.X)
	p.inner.Y = p.inner.Y.Set(a.(*BJJ).inner.Y)
}

func (p *BJJ) SetGenerator() {
	gen := babyjubjub.B8
	p.inner.X = p.inner.X.Set(gen.X)
	p.inner.Y = p.inner.Y.Set(gen.Y)
}

func (p *BJJ) String() string {
	return fmt.Sprintf("%s,%s", p.inner.X.String(), p.inner.Y.String())
}

func (p *BJJ) Point() (*big.Int, *big.Int) {
	return new(big.Int).Set(p.inner.X), new(big.Int).Set(p.inner.Y)
}

func (p *BJJ) SetPoint(x, y *big.Int) curve.Point {
	np := &BJJ{inner: babyjubjub.NewPoint()}
	np.inner.X = np.inner.X.Set(x)
	np.inner.Y = np.inner.Y.Set(y)
	return np
}

func (p *BJJ) Type() string {
	return CurveType
}
