package types

const (
	// MaxTallyValue is the upper bound for a decrypted tally count. It
	// bounds the discrete logarithm search performed by the decryption
	// oracle, so it also caps the number of votes a proposal can hold.
	MaxTallyValue = 1 << 20
	// ResultWordSize is the size in bytes of each unsigned integer in a
	// decrypted result payload.
	ResultWordSize = 32
	// ResultWords is the number of integers in a decrypted result payload:
	// the for-tally followed by the against-tally.
	ResultWords = 2
)
