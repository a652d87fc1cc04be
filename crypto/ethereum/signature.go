// Package ethereum provides cryptographic operations used to identify and
// authenticate callers by their Ethereum address: ECDSA key management on
// secp256k1, message signing and address recovery.
package ethereum

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/sealedvote/tally/types"
	"github.com/sealedvote/tally/util"
)

// SignatureLength is the size in bytes of an ECDSA signature with the
// recovery id appended.
const SignatureLength = 65

// SignKeys represents an ECDSA public/private key pair on secp256k1.
type SignKeys struct {
	Public  *ecdsa.PublicKey
	Private *ecdsa.PrivateKey
}

// NewSignKeys creates an empty SignKeys.
func NewSignKeys() *SignKeys {
	return &SignKeys{}
}

// Generate creates a new random key pair.
func (k *SignKeys) Generate() error {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return err
	}
	k.Private = key
	k.Public = &key.PublicKey
	return nil
}

// AddHexKey imports a private hex key, with or without the 0x prefix.
func (k *SignKeys) AddHexKey(privHex string) error {
	key, err := ethcrypto.HexToECDSA(util.TrimHex(privHex))
	if err != nil {
		return err
	}
	k.Private = key
	k.Public = &key.PublicKey
	return nil
}

// HexString returns the compressed public key and the private key in hex.
func (k *SignKeys) HexString() (string, string) {
	pubHexComp := hex.EncodeToString(ethcrypto.CompressPubkey(k.Public))
	privHex := hex.EncodeToString(ethcrypto.FromECDSA(k.Private))
	return pubHexComp, privHex
}

// PublicKey returns the compressed public key.
func (k *SignKeys) PublicKey() types.HexBytes {
	return ethcrypto.CompressPubkey(k.Public)
}

// Address returns the Ethereum address derived from the public key.
func (k *SignKeys) Address() common.Address {
	return ethcrypto.PubkeyToAddress(*k.Public)
}

// AddressString returns the Ethereum address as a checksummed string.
func (k *SignKeys) AddressString() string {
	return k.Address().String()
}

// SignEthereum signs a message. The message is hashed following the
// Ethereum personal-message convention before signing, so signatures are
// compatible with standard wallets.
func (k *SignKeys) SignEthereum(message []byte) ([]byte, error) {
	if k.Private == nil {
		return nil, fmt.Errorf("no private key available")
	}
	return ethcrypto.Sign(HashEthereumMessage(message), k.Private)
}

// AddrFromPublicKey standalone function to obtain the Ethereum address
// from a compressed ECDSA public key.
func AddrFromPublicKey(pub types.HexBytes) (common.Address, error) {
	pubKey, err := ethcrypto.DecompressPubkey(pub)
	if err != nil {
		return common.Address{}, err
	}
	return ethcrypto.PubkeyToAddress(*pubKey), nil
}

// AddrFromSignature recovers the Ethereum address that signed the given
// message.
func AddrFromSignature(message, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(signature))
	}
	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	// normalize the recovery id
	if sig[64] > 1 {
		sig[64] -= 27
	}
	pubKey, err := ethcrypto.SigToPub(HashEthereumMessage(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("sigToPub %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pubKey), nil
}

// HashRaw hashes data with keccak256.
func HashRaw(data []byte) []byte {
	return ethcrypto.Keccak256(data)
}

// HashEthereumMessage hashes data prepending the Ethereum personal-message
// prefix.
func HashEthereumMessage(data []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(data))
	return HashRaw(append([]byte(prefix), data...))
}
