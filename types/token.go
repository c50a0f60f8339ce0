package types

import "time"

// PasswordResetToken is the stored side of a password reset request.
// Only the SHA-256 hash of the raw token ever touches the database; the
// raw value travels to the user by email and comes back in the reset URL.
type PasswordResetToken struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"userId" db:"user_id"`
	TokenHash string    `json:"-" db:"token_hash"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
}

// Expired reports whether the token is past its expiry at the given time.
func (t PasswordResetToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
