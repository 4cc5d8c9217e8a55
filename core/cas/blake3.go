package cas

import (
	"encoding/hex"
	"fmt"
	"io"
	"regexp"

	"github.com/zeebo/blake3"
)

// identityPattern matches a lowercase BLAKE3-256 hex digest.
var identityPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Identity returns the BLAKE3-256 hex digest of a source drawing. Two
// sources with equal bytes share an identity.
func Identity(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// IdentityReader hashes r until EOF.
func IdentityReader(r io.Reader) (string, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash source: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ValidIdentity reports whether id is a well-formed identity.
func ValidIdentity(id string) bool {
	return identityPattern.MatchString(id)
}
