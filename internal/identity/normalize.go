// Package identity canonicalizes participant identifiers across the two platforms.
//
// Individuals are identified by a digit-only phone number with a leading "+".
// Group chats are identified by an opaque id carrying a "-group" suffix; group
// ids must pass through untouched — digit-stripping one breaks the
// cross-platform correlation key.
package identity

import "strings"

// GroupSuffix marks a group participant identifier on the gateway platform.
const GroupSuffix = "-group"

// NormalizePhone reduces a raw phone string to digits and prefixes "+".
// Returns "" when no digits remain.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// IsGroup reports whether id identifies a group chat.
func IsGroup(id string) bool {
	return strings.HasSuffix(id, GroupSuffix)
}

// CanonicalParticipant returns the canonical participant identifier for a raw
// inbound identifier. Only ids carrying the group suffix pass through
// verbatim; everything else, including a member phone arriving on a group
// event, is phone-normalized. ok=false means no usable identifier exists and
// the caller must ignore the event.
func CanonicalParticipant(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if IsGroup(raw) {
		return raw, true
	}
	phone := NormalizePhone(raw)
	if phone == "" {
		return "", false
	}
	return phone, true
}

// DialTarget returns the identifier to hand the gateway client for an
// outbound send: group ids verbatim, individual ids digits-only.
func DialTarget(participantID string) string {
	if IsGroup(participantID) {
		return participantID
	}
	var b strings.Builder
	for _, r := range participantID {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
