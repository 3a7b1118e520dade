package fetch

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/roach88/pipec/internal/ir"
)

// identityKey is the BLAKE3 key for include identities: the ASCII domain
// name zero-padded to 32 bytes.
var identityKey = [32]byte{
	'p', 'i', 'p', 'e', 'c', '.', 'i', 'n', 'c', 'l', 'u', 'd', 'e', '.', 'v', '1',
}

// Identity returns the content identity of an include's text.
func Identity(content []byte) string {
	hasher, err := blake3.NewKeyed(identityKey[:])
	if err != nil {
		panic("fetch: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(content)
	return "blake3:" + hex.EncodeToString(hasher.Sum(nil))
}

func fetched(name string, content []byte) *ir.Fetched {
	return &ir.Fetched{Name: name, Content: content, Identity: Identity(content)}
}
