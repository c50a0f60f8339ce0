package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/memories-social/apiserver/internal/mail"
	"github.com/memories-social/apiserver/internal/store"
	"github.com/memories-social/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength applies to registration, login, change and reset.
	MinPasswordLength = 6

	resetTokenBytes = 32
	resetTokenTTL   = 30 * time.Minute
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	UpdateFollowers(ctx context.Context, id int, followers []int) error
	UpdateFollowing(ctx context.Context, id int, following []int) error
	Delete(ctx context.Context, id int) error
}

// ResetTokenRepository defines persistence operations for reset tokens.
type ResetTokenRepository interface {
	GetByHash(ctx context.Context, tokenHash string) (types.PasswordResetToken, error)
	Create(ctx context.Context, token types.PasswordResetToken) (types.PasswordResetToken, error)
	DeleteByUser(ctx context.Context, userID int) error
	Delete(ctx context.Context, id int) error
}

// UserService encapsulates account use-cases: registration, login,
// profile edits, the follow graph, and the password reset lifecycle.
type UserService struct {
	repo        UserRepository
	tokens      ResetTokenRepository
	mailer      mail.Mailer
	events      EventPublisher
	frontendURL string
	mailFrom    string
}

func NewUserService(repo UserRepository, tokens ResetTokenRepository, mailer mail.Mailer, events EventPublisher, frontendURL, mailFrom string) *UserService {
	return &UserService{
		repo:        repo,
		tokens:      tokens,
		mailer:      mailer,
		events:      events,
		frontendURL: frontendURL,
		mailFrom:    mailFrom,
	}
}

// RegisterInput carries the registration fields. ImageURL is already
// resolved by the handler when an image was uploaded.
type RegisterInput struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
	Password  string
	ImageURL  string
}

// Register creates an account. The password is hashed before it ever
// reaches the repository.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if in.FirstName == "" || in.LastName == "" || in.Username == "" || in.Email == "" || in.Password == "" {
		return types.User{}, ErrMissingFields
	}
	if len(in.Password) < MinPasswordLength {
		return types.User{}, ErrPasswordTooShort
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return types.User{}, ErrEmailExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}

	profilePhoto := types.DefaultProfilePhoto
	coverPhoto := types.DefaultCoverPhoto
	if in.ImageURL != "" {
		profilePhoto = in.ImageURL
		coverPhoto = in.ImageURL
	}

	return s.repo.Create(ctx, types.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hashed),
		ProfilePhoto: profilePhoto,
		CoverPhoto:   coverPhoto,
		Bio:          "bio",
	})
}

// Login verifies credentials by email.
func (s *UserService) Login(ctx context.Context, email, password string) (types.User, error) {
	if len(password) < MinPasswordLength {
		return types.User{}, ErrPasswordTooShort
	}

	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return types.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

// UpdateProfileInput carries profile edits. Empty fields keep their
// prior values; ImageURL replaces both photo URLs when set.
type UpdateProfileInput struct {
	FirstName    string
	LastName     string
	Username     string
	Email        string
	Bio          string
	LivesIn      string
	WorksAt      string
	Relationship string
	ImageURL     string
}

// UpdateProfile merges the supplied fields over the stored ones.
func (s *UserService) UpdateProfile(ctx context.Context, id int, in UpdateProfileInput) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	if in.Bio != "" && len(in.Bio) > types.MaxBioLength {
		return types.User{}, ErrBioTooLong
	}

	user.FirstName = merge(in.FirstName, user.FirstName)
	user.LastName = merge(in.LastName, user.LastName)
	user.Username = merge(in.Username, user.Username)
	user.Email = merge(in.Email, user.Email)
	user.Bio = merge(in.Bio, user.Bio)
	user.LivesIn = merge(in.LivesIn, user.LivesIn)
	user.WorksAt = merge(in.WorksAt, user.WorksAt)
	user.Relationship = merge(in.Relationship, user.Relationship)
	if in.ImageURL != "" {
		user.ProfilePhoto = in.ImageURL
		user.CoverPhoto = in.ImageURL
	}

	return s.repo.Update(ctx, user)
}

func merge(updated, prior string) string {
	if strings.TrimSpace(updated) == "" {
		return prior
	}
	return updated
}

// ChangePassword verifies the old password and stores the new one.
func (s *UserService) ChangePassword(ctx context.Context, id int, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return ErrMissingFields
	}
	if len(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, id, string(hashed))
}

func (s *UserService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

// ForgotPassword issues a reset token and mails the reset link. The raw
// token is random bytes hex-encoded with the user id appended; only its
// SHA-256 hash is stored. Any prior token for the user is removed first.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return err
	}

	if s.mailer == nil {
		return ErrMailNotConfigured
	}

	if err := s.tokens.DeleteByUser(ctx, user.ID); err != nil {
		return err
	}

	raw, err := newResetToken(user.ID)
	if err != nil {
		return err
	}

	now := time.Now()
	if _, err := s.tokens.Create(ctx, types.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: hashResetToken(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(resetTokenTTL),
	}); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password/%s", strings.TrimRight(s.frontendURL, "/"), raw)
	body := fmt.Sprintf(`
	<h2>Hello %s %s</h2>
	<p>Please use the url below to reset your password</p>
	<p>The reset link is valid for only 30 minutes</p>
	<a href=%s clicktracking=off>%s</a>
	<p>Regards</p>
	<p>The Memories Team</p>
	`, user.FirstName, user.LastName, resetURL, resetURL)

	return s.mailer.Send(ctx, "Password Reset Request", body, user.Email, s.mailFrom)
}

// ResetPassword consumes a raw reset token and rewrites the password.
// The token row is deleted once the new password is stored, so a token
// cannot be replayed inside its validity window.
func (s *UserService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if newPassword == "" {
		return ErrMissingFields
	}
	if len(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	token, err := s.tokens.GetByHash(ctx, hashResetToken(rawToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	if token.Expired(time.Now()) {
		return ErrInvalidResetToken
	}

	user, err := s.repo.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, string(hashed)); err != nil {
		return err
	}

	return s.tokens.Delete(ctx, token.ID)
}

// ToggleFollow flips the follow relationship between actor and target.
// One membership check decides the branch; both sides of the graph are
// updated together. Returns true when the call resulted in a follow.
func (s *UserService) ToggleFollow(ctx context.Context, targetID, actorID int) (bool, error) {
	if targetID == actorID {
		return false, ErrSelfFollow
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return false, err
	}
	actor, err := s.repo.GetByID(ctx, actorID)
	if err != nil {
		return false, err
	}

	if target.FollowedBy(actor.ID) {
		target.Followers = removeID(target.Followers, actor.ID)
		actor.Following = removeID(actor.Following, target.ID)
		if err := s.repo.UpdateFollowers(ctx, target.ID, target.Followers); err != nil {
			return false, err
		}
		if err := s.repo.UpdateFollowing(ctx, actor.ID, actor.Following); err != nil {
			return false, err
		}
		return false, nil
	}

	target.Followers = append(target.Followers, actor.ID)
	actor.Following = append(actor.Following, target.ID)
	if err := s.repo.UpdateFollowers(ctx, target.ID, target.Followers); err != nil {
		return false, err
	}
	if err := s.repo.UpdateFollowing(ctx, actor.ID, actor.Following); err != nil {
		return false, err
	}

	publishActivity(ctx, s.events, ActivityEvent{
		Type:         EventUserFollowed,
		ActorID:      actor.ID,
		TargetUserID: target.ID,
	})
	return true, nil
}

func removeID(ids []int, id int) []int {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func newResetToken(userID int) (string, error) {
	var buf [resetTokenBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]) + strconv.Itoa(userID), nil
}

func hashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
