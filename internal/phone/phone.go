// Package phone normalizes WhatsApp addresses to bare digit strings.
package phone

import (
	"strings"
)

// Normalize strips JID suffixes ("@s.whatsapp.net", "@c.us"), device parts
// (":12") and every non-digit. "+55 (11) 98888-7777" and
// "5511988887777@s.whatsapp.net" both become "5511988887777".
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsGroup true for group chat addresses, which are not contacts
func IsGroup(raw string) bool {
	return strings.HasSuffix(raw, "@g.us")
}

// IsBroadcast status updates and broadcast lists
func IsBroadcast(raw string) bool {
	return strings.HasSuffix(raw, "@broadcast") || strings.HasSuffix(raw, "@newsletter")
}

// JID WhatsApp user address of a normalized number
func JID(digits string) string {
	return digits + "@s.whatsapp.net"
}
