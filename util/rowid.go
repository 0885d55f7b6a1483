package util

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ContentHash computes the same stable 64-bit content hash the emitted
// SQL uses (via the pgstream.pg_stream_hash() function, itself an
// xxhash64 over the row's canonical text form) but on the Go side. No
// other package or test in this module calls it.
//
// fields are hashed in order, joined by a separator that cannot appear in
// a single field's rendered form (NUL), matching the "hash of row content"
// contract spec.md section 4.4 describes for the Scan rule.
func ContentHash(fields ...string) uint64 {
	return xxhash.Sum64String(strings.Join(fields, "\x00"))
}

// ContentHashString renders ContentHash as the decimal string the SQL
// emission layer embeds in generated expressions (bigint literal text).
func ContentHashString(fields ...string) string {
	return strconv.FormatUint(ContentHash(fields...), 10)
}
