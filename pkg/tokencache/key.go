package tokencache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key identifies the token issued to one client for one scope at one
// token endpoint.
type Key struct {
	TokenURL string
	ClientID string
	Scope    string
}

// String generates a deterministic Redis key.
// Format: adform:token:<client_id>:<hash of token url and scope>
//
// Example:
//
//	adform:token:my-client:1f0c6a2b9d3e4f5a
func (k Key) String() string {
	sum := sha256.Sum256([]byte(strings.TrimRight(k.TokenURL, "/") + "\n" + k.Scope))
	return strings.Join([]string{"adform", "token", k.ClientID, hex.EncodeToString(sum[:8])}, ":")
}
