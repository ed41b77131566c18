package session

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// CodeSource produces candidate session codes. The registry retries until a
// candidate is not in use.
type CodeSource func() (string, error)

// RandomCodes returns a CodeSource drawing length characters uniformly from
// alphabet using crypto/rand.
func RandomCodes(alphabet string, length int) CodeSource {
	glyphs := []rune(alphabet)
	max := big.NewInt(int64(len(glyphs)))
	return func() (string, error) {
		var b strings.Builder
		b.Grow(length)
		for i := 0; i < length; i++ {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", err
			}
			b.WriteRune(glyphs[n.Int64()])
		}
		return b.String(), nil
	}
}

// NormalizeCode trims surrounding whitespace and uppercases a code as typed
// by a user.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
