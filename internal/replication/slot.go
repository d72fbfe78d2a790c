package replication

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// slotTokenLen is the number of hex characters kept per id token. Two ids
// only collide when both 40-bit truncated digests match, which is
// negligible for the id volumes a single warren deployment sees.
const slotTokenLen = 10

// SlotName derives the deterministic replication slot name for an
// (environment, run) pair. Ids are hashed so arbitrary id shapes always map
// into the lowercase [a-z0-9_] alphabet Postgres requires of slot names,
// and the result stays well under the 63-byte identifier limit.
func SlotName(prefix, environmentID, runID string) string {
	return fmt.Sprintf("%s_%s_%s", prefix, slotToken(environmentID), slotToken(runID))
}

func slotToken(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])[:slotTokenLen]
}
