package random

import (
	"crypto/rand"
	"math/big"
)

// Random is the source of all game randomness: roll values, first-actor
// selection and generated ids. Injectable so tests can script outcomes.
type Random interface {
	// Intn returns a uniform random int in [0, n)
	Intn(n int) int

	// String generates a random string of the given length from the given alphabet
	String(length int, alphabet string) string
}

// CryptoRandom implements Random on crypto/rand. Rolls decide wagers, so
// the source must be unbiased and unpredictable.
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// Intn returns a cryptographically random int in [0, n)
func (r *CryptoRandom) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	result, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// A biased fallback would decide wagers; crypto/rand failing
		// means the process has no usable entropy source at all.
		panic("random: " + err.Error())
	}
	return int(result.Int64())
}

// String generates a random string of the given length from the given alphabet
func (r *CryptoRandom) String(length int, alphabet string) string {
	if length <= 0 || len(alphabet) == 0 {
		return ""
	}
	result := make([]byte, length)
	for i := range result {
		result[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(result)
}
