package identity

import (
	"crypto/rand"
	"math/big"
)

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"

// generatePassword returns a random credential that satisfies the pool's
// password policy. The fixed prefix guarantees one character of every
// required class; the remaining 28 characters carry the entropy.
func generatePassword() (string, error) {
	out := make([]byte, 28)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return "Aa1!" + string(out), nil
}
