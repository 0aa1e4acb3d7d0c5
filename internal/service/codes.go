package service

import (
	"crypto/rand"
	"fmt"
)

// Human-quotable codes: prefix plus 10 hex characters. Uniqueness is
// enforced by the database unique index; collisions surface as persistence
// errors and are retried by the caller.
func newCode(prefix string) string {
	var b [5]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("%s-%X", prefix, b)
}

func newReferralCode() string { return newCode("REF") }
func newUTN() string          { return newCode("UTN") }
func newPACodeValue() string  { return newCode("PA") }
