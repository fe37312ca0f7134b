// Package pairid derives a canonical, order-independent identifier for a
// pair of users. Matches and conversations both key their rows by this id,
// so the two subsystems can never disagree about which row belongs to a
// given pair.
package pairid

import "github.com/google/uuid"

// Namespace for pair-derived UUIDs. Fixed forever: changing it would orphan
// every persisted match row.
var namespace = uuid.MustParse("9f2c1b4e-5a77-4d25-8c3a-1e64700ab911")

// PairID returns the deterministic id for the unordered pair {a, b}.
// Commutative: PairID(a, b) == PairID(b, a).
func PairID(a, b string) string {
	lo, hi := Ordered(a, b)
	return uuid.NewSHA1(namespace, []byte(lo+":"+hi)).String()
}

// Ordered returns the pair in canonical order, lower identifier first.
func Ordered(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
