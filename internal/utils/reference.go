package utils

import (
	"crypto/rand"
	"fmt"
	"time"
)

// referenceAlphabet omits characters that are easy to misread on a ticket.
const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewBookingReference returns a human-friendly code of the form
// BK-YYYYMMDD-XXXXXX.  Uniqueness is enforced by the store; the random
// part only has to make collisions rare.
func NewBookingReference(now time.Time) (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate booking reference: %w", err)
	}
	for i, b := range buf {
		buf[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return fmt.Sprintf("BK-%s-%s", now.UTC().Format("20060102"), buf), nil
}
