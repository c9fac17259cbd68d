package learner

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Pseudonym returns a stable, non-reversible identifier for logging a learner
// without exposing the raw id. A non-empty key makes the mapping keyed so it
// cannot be recomputed by someone who only knows the learner id.
func Pseudonym(key []byte, learnerID string) string {
	if len(key) > 0 {
		if len(key) > blake2b.Size {
			key = key[:blake2b.Size]
		}
		h, err := blake2b.New256(key)
		if err == nil {
			h.Write([]byte(learnerID))
			return hex.EncodeToString(h.Sum(nil))[:16]
		}
	}
	sum := blake2b.Sum256([]byte(learnerID))
	return hex.EncodeToString(sum[:])[:16]
}
