package types

import "time"

const (
	// DefaultProfilePhoto is used when a user registers without an image.
	DefaultProfilePhoto = "https://i.ibb.co/4pDNDk1/avatar.png"

	// DefaultCoverPhoto is used when a user registers without an image.
	DefaultCoverPhoto = "https://theoheartist.com/wp-content/uploads/sites/2/2015/01/fbdefault.png"

	// MaxBioLength caps the profile bio.
	MaxBioLength = 250
)

// User represents an account in the system.
// It contains identity, profile, and social-graph metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// FirstName and LastName are the user's legal or display names.
	FirstName string `json:"firstName" db:"first_name"`
	LastName  string `json:"lastName" db:"last_name"`

	// Username is the login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's email address. Globally unique.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// IsAdmin indicates elevated privileges (delete any post).
	IsAdmin bool `json:"isAdmin" db:"is_admin"`

	// ProfilePhoto and CoverPhoto are object-storage URLs.
	ProfilePhoto string `json:"profilePhoto" db:"profile_photo"`
	CoverPhoto   string `json:"coverPhoto" db:"cover_photo"`

	// Bio is free text, at most MaxBioLength characters.
	Bio string `json:"bio" db:"bio"`

	// Followers and Following hold user ids on both sides of the
	// follow relationship.
	Followers []int `json:"followers" db:"followers"`
	Following []int `json:"following" db:"following"`

	// Free-text profile fields.
	LivesIn      string `json:"livesIn" db:"lives_in"`
	WorksAt      string `json:"worksAt" db:"works_at"`
	Relationship string `json:"relationship" db:"relationship"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Follows reports whether the user follows the given user id.
func (u User) Follows(id int) bool {
	for _, f := range u.Following {
		if f == id {
			return true
		}
	}
	return false
}

// FollowedBy reports whether the given user id is in the followers list.
func (u User) FollowedBy(id int) bool {
	for _, f := range u.Followers {
		if f == id {
			return true
		}
	}
	return false
}
