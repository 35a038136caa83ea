// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package hash provides deterministic content hashing for memory
// deduplication. Hashes are identity keys, not security primitives.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of content.
// The same input always produces the same output across runs and platforms,
// so digests can be compared against values written by other clients.
func Sum(content string) string {
	digest := sha256.Sum256([]byte(content))
	return hex.EncodeToString(digest[:])
}

// DJB2 returns the hex-encoded DJB2 rolling hash of content.
// Clients without a crypto primitive write records hashed with this
// fallback; it trades collision resistance for portability, which is
// acceptable for dedup-only, non-adversarial use. Kept so records
// produced by the fallback path remain comparable.
func DJB2(content string) string {
	var h uint32 = 5381
	for i := 0; i < len(content); i++ {
		h = h*33 + uint32(content[i])
	}
	return fmt.Sprintf("%08x", h)
}

// Equal compares two digests case-insensitively.
func Equal(a, b string) bool {
	return strings.EqualFold(a, b)
}
