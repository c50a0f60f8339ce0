package types

import "time"

// Post is a user-authored entry on the feed. Likes and comments are
// embedded in the post record rather than stored as separate rows.
type Post struct {
	// ID is the unique identifier of the post.
	ID int64 `json:"id" db:"id"`

	// UserID references the authoring user.
	UserID int `json:"userId" db:"user_id"`

	Title string `json:"title" db:"title"`

	// Image is the object-storage URL of the attached image, if any.
	Image string `json:"image" db:"image"`

	// Likes holds the ids of users who liked the post.
	Likes []int `json:"likes" db:"likes"`

	// Comments holds the embedded comment records in insertion order.
	Comments []Comment `json:"comments" db:"comments"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Comment is embedded in its parent post.
type Comment struct {
	// UserID references the commenting user.
	UserID int `json:"userId"`

	// Username is denormalized at comment time.
	Username string `json:"username"`

	// ProfileImage is the commenter's avatar URL, optional.
	ProfileImage string `json:"profileImage,omitempty"`

	// Comment is the text body.
	Comment string `json:"comment"`
}

// LikedBy reports whether the given user id is in the likes list.
func (p Post) LikedBy(id int) bool {
	for _, l := range p.Likes {
		if l == id {
			return true
		}
	}
	return false
}
