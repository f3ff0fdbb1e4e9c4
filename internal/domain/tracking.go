package domain

import (
	"math/rand/v2"
	"regexp"
	"strings"
)

// TrackingPrefix is the two-letter prefix of every tracking identifier.
const TrackingPrefix = "CC"

const trackingAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// reTracking validates the externally visible tracking identifier format.
var reTracking = regexp.MustCompile(`^[A-Z]{2}-[A-Z0-9]{6}$`)

// NewTrackingID generates a random tracking identifier such as "CC-4H7QZ2".
// The space is large but collisions are possible; callers retry generation
// on a uniqueness violation.
func NewTrackingID() string {
	var b strings.Builder
	b.Grow(9)
	b.WriteString(TrackingPrefix)
	b.WriteByte('-')
	for i := 0; i < 6; i++ {
		b.WriteByte(trackingAlphabet[rand.IntN(len(trackingAlphabet))])
	}
	return b.String()
}

// ValidTrackingID validates the tracking identifier format.
func ValidTrackingID(s string) bool {
	return reTracking.MatchString(s)
}

// NormalizeTrackingID uppercases and trims a user-supplied tracking identifier.
func NormalizeTrackingID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
