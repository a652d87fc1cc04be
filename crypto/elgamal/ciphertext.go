package elgamal

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/sealedvote/tally/crypto/ecc"
)

// Sizes in bytes of the serialized (transport) form of a Ciphertext.
const (
	sizeCoord = 32
	sizePoint = 2 * sizeCoord
	// SizeCiphertext is the length of the transport form: the four
	// affine coordinates C1.X, C1.Y, C2.X, C2.Y, big-endian.
	SizeCiphertext = 2 * sizePoint
)

// Ciphertext represents an ElGamal encrypted value with additively
// homomorphic properties. It is the opaque handle the tally logic operates
// on: two curve points, never inspected beyond Add and serialization.
type Ciphertext struct {
	C1 ecc.Point `json:"c1"`
	C2 ecc.Point `json:"c2"`
}

// NewCiphertext creates a new Ciphertext on the same curve as the given
// point. The point can be created with curves.New(type).
func NewCiphertext(curve ecc.Point) *Ciphertext {
	return &Ciphertext{C1: curve.New(), C2: curve.New()}
}

// EncryptZero returns a fresh encryption of zero under the given public
// key, used to initialize the running tallies of a new proposal.
func EncryptZero(publicKey ecc.Point) (*Ciphertext, error) {
	return NewCiphertext(publicKey).Encrypt(big.NewInt(0), publicKey, nil)
}

// Encrypt encrypts a message using the public key provided as elliptic
// curve point. The randomness k can be provided or nil to generate a new
// one.
func (z *Ciphertext) Encrypt(message *big.Int, publicKey ecc.Point, k *big.Int) (*Ciphertext, error) {
	var err error
	if k == nil {
		k, err = RandK(publicKey)
		if err != nil {
			return nil, fmt.Errorf("elgamal encryption failed: %w", err)
		}
	}
	c1, c2, err := EncryptWithK(publicKey, message, k)
	if err != nil {
		return nil, fmt.Errorf("elgamal encryption failed: %w", err)
	}
	z.C1 = c1
	z.C2 = c2
	return z, nil
}

// Add adds two Ciphertexts and stores the result in z, which is also
// returned. Addition is commutative and associative, so any fold order of
// the same set of votes yields the same aggregate.
func (z *Ciphertext) Add(x, y *Ciphertext) *Ciphertext {
	z.C1.SafeAdd(x.C1, y.C1)
	z.C2.SafeAdd(x.C2, y.C2)
	return z
}

// Serialize returns the transport form of z: a slice of SizeCiphertext
// bytes holding C1.X, C1.Y, C2.X, C2.Y as big-endian 32-byte words.
func (z *Ciphertext) Serialize() []byte {
	buf := make([]byte, 0, SizeCiphertext)
	c1x, c1y := z.C1.Point()
	c2x, c2y := z.C2.Point()
	for _, bi := range []*big.Int{c1x, c1y, c2x, c2y} {
		word := make([]byte, sizeCoord)
		bi.FillBytes(word)
		buf = append(buf, word...)
	}
	return buf
}

// Deserialize reconstructs a Ciphertext from its transport form. The
// receiver must have been created with NewCiphertext so the curve type is
// known. The input must be of len SizeCiphertext, otherwise it returns an
// error.
func (z *Ciphertext) Deserialize(data []byte) error {
	if len(data) != SizeCiphertext {
		return fmt.Errorf("invalid input length: got %d bytes, expected %d bytes", len(data), SizeCiphertext)
	}
	coord := func(i int) *big.Int {
		return new(big.Int).SetBytes(data[i*sizeCoord : (i+1)*sizeCoord])
	}
	z.C1 = z.C1.SetPoint(coord(0), coord(1))
	z.C2 = z.C2.SetPoint(coord(2), coord(3))
	return nil
}

// Marshal converts Ciphertext to a byte slice.
func (z *Ciphertext) Marshal() ([]byte, error) {
	return json.Marshal(z)
}

// Unmarshal populates Ciphertext from a byte slice. The receiver must have
// been created with NewCiphertext so the points carry their concrete curve
// type.
func (z *Ciphertext) Unmarshal(data []byte) error {
	return json.Unmarshal(data, z)
}

// String returns a string representation of the Ciphertext.
func (z *Ciphertext) String() string {
	if z == nil || z.C1 == nil || z.C2 == nil {
		return "{C1: nil, C2: nil}"
	}
	return fmt.Sprintf("{C1: %s, C2: %s}", z.C1.String(), z.C2.String())
}
