package pkg

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateRandomString returns n random bytes from crypto/rand, encoded
// with unpadded URL-safe base64 so the result fits in redis keys and cookies.
func GenerateRandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
