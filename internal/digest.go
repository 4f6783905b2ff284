package internal

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// TokenRef returns a short, non-reversible reference to a credential that is
// safe to put in logs. Equal tokens yield equal refs.
func TokenRef(token string) string {
	if token == "" {
		return ""
	}
	sum := blake3.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}
