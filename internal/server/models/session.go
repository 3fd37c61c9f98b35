package models

import "time"

// Session is a server-side auth session. Its ID is the jti of the bearer
// token handed to the client.
type Session struct {
	ID             string
	UserID         string
	IssuedAt       time.Time
	ExpiresAt      time.Time
	SecondFactorAt *time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SecondFactorPassed reports whether visual authentication succeeded within
// this session.
func (s *Session) SecondFactorPassed() bool {
	return s.SecondFactorAt != nil
}
