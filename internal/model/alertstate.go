package model

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"
)

// AlertState is the persisted per-(source,target) memory of what was last
// notified. Exactly one exists per pair once it has been evaluated at least
// once (spec.md §3).
type AlertState struct {
	Source           string
	Target           string
	LastStatus       Status
	LastReasonHash   string
	LastChangeAt     time.Time
	LastSentAt       time.Time
	CooldownUntil    time.Time
}

// ReasonHash computes the stable digest over the ascending-sorted multiset
// of reason codes. Two decisions with the same set of codes (regardless of
// order, messages or details) hash identically.
func ReasonHash(codes []string) string {
	sorted := make([]string, len(codes))
	copy(sorted, codes)
	sort.Strings(sorted)
	h := sha256.New()
	for _, c := range sorted {
		h.Write([]byte(c))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// EmptyReasonHash is ReasonHash(nil), the canonical hash of an OK decision
// with no reasons.
var EmptyReasonHash = ReasonHash(nil)
