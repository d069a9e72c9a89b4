package crypto

//revive:disable:var-naming

// SigningAlgorithm is an identifier for a signing algorithm and curve.
type SigningAlgorithm int

const (
	// Supported signing algorithms
	UnknownSigningAlgorithm SigningAlgorithm = iota
	ECDSA_SECp256k1
)

// String returns the string representation of this signing algorithm.
func (f SigningAlgorithm) String() string {
	return [...]string{"UNKNOWN", "ECDSA_SECp256k1"}[f]
}

const (
	// SEC p256k1
	PrKeyLenECDSA_SECp256k1 = 32
	// compressed form, parity byte followed by the x coordinate
	PubKeyLenECDSA_SECp256k1 = 33
)

// Signature is a DER encoded ECDSA signature.
type Signature []byte
