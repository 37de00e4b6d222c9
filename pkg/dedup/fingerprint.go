// Package dedup produces deterministic import fingerprints used to suppress
// re-import of transactions that were already persisted.
package dedup

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Fingerprint hashes the identifying fields of a transaction into a stable
// hex digest. The same logical transaction under the same account always
// yields the same digest; the digest is the sole deduplication key.
//
// The description is lower-cased and whitespace-collapsed and the amount is
// fixed to two decimals so that cosmetic differences between exports do not
// change the hash.
func Fingerprint(date string, amount float64, description string, accountID string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(description)), " ")
	input := fmt.Sprintf("%s|%.2f|%s|%s", date, amount, normalized, accountID)
	sum := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", sum)
}
