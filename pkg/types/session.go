package types

import "time"

// Session is a server-side admin session. Only the hash of the token the
// client holds is stored.
type Session struct {
	ID        string    `json:"id"`
	TokenHash string    `json:"tokenHash"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
