package tenant

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// credentialAlphabet deliberately excludes shell- and URL-significant
// characters; generated values end up in env files and connection strings.
const credentialAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateCredential returns a cryptographically random string of the
// given length over the credential alphabet.
func generateCredential(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("credential length must be positive, got %d", length)
	}
	out := make([]byte, length)
	max := big.NewInt(int64(len(credentialAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		out[i] = credentialAlphabet[n.Int64()]
	}
	return string(out), nil
}
