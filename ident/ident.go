// Package ident derives stable item identifiers from tracking URLs.
package ident

import (
	"crypto/sha1"
	"encoding/hex"
)

// Length is the number of hex characters in a derived identifier. Ten hex
// characters (40 bits) is plenty of entropy for the expected item cardinality
// of tens to low hundreds.
const Length = 10

// Derive returns the identifier for a tracking URL. The same URL always
// yields the same identifier, across calls and across process restarts.
func Derive(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])[:Length]
}
