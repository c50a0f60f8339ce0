package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/memories-social/apiserver/internal/store"
	"github.com/memories-social/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserRepo struct {
	nextID int
	users  map[int]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: map[int]types.User{}}
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) List(_ context.Context) ([]types.User, error) {
	var users []types.User
	for _, user := range r.users {
		users = append(users, user)
	}
	return users, nil
}

func (r *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	user.ID = r.nextID
	r.nextID++
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Followers == nil {
		user.Followers = []int{}
	}
	if user.Following == nil {
		user.Following = []int{}
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	existing, ok := r.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	// Profile update does not touch password, role, or the follow graph.
	user.PasswordHash = existing.PasswordHash
	user.IsAdmin = existing.IsAdmin
	user.Followers = existing.Followers
	user.Following = existing.Following
	user.UpdatedAt = time.Now()
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id int, passwordHash string) error {
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	r.users[id] = user
	return nil
}

func (r *fakeUserRepo) UpdateFollowers(_ context.Context, id int, followers []int) error {
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.Followers = followers
	r.users[id] = user
	return nil
}

func (r *fakeUserRepo) UpdateFollowing(_ context.Context, id int, following []int) error {
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.Following = following
	r.users[id] = user
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type fakeTokenRepo struct {
	nextID int
	tokens map[int]types.PasswordResetToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{nextID: 1, tokens: map[int]types.PasswordResetToken{}}
}

func (r *fakeTokenRepo) GetByHash(_ context.Context, tokenHash string) (types.PasswordResetToken, error) {
	for _, token := range r.tokens {
		if token.TokenHash == tokenHash {
			return token, nil
		}
	}
	return types.PasswordResetToken{}, store.ErrNotFound
}

func (r *fakeTokenRepo) Create(_ context.Context, token types.PasswordResetToken) (types.PasswordResetToken, error) {
	token.ID = r.nextID
	r.nextID++
	r.tokens[token.ID] = token
	return token, nil
}

func (r *fakeTokenRepo) DeleteByUser(_ context.Context, userID int) error {
	for id, token := range r.tokens {
		if token.UserID == userID {
			delete(r.tokens, id)
		}
	}
	return nil
}

func (r *fakeTokenRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.tokens[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.tokens, id)
	return nil
}

type fakeMailer struct {
	subjects []string
	bodies   []string
	to       []string
}

func (m *fakeMailer) Send(_ context.Context, subject, htmlBody, to, _ string) error {
	m.subjects = append(m.subjects, subject)
	m.bodies = append(m.bodies, htmlBody)
	m.to = append(m.to, to)
	return nil
}

var resetLinkPattern = regexp.MustCompile(`/reset-password/([0-9a-f]+\d*)`)

func (m *fakeMailer) lastResetToken(t *testing.T) string {
	t.Helper()
	if len(m.bodies) == 0 {
		t.Fatal("no mail sent")
	}
	match := resetLinkPattern.FindStringSubmatch(m.bodies[len(m.bodies)-1])
	if match == nil {
		t.Fatalf("no reset link in mail body: %s", m.bodies[len(m.bodies)-1])
	}
	return match[1]
}

func newTestUserService(repo *fakeUserRepo, tokens *fakeTokenRepo, mailer *fakeMailer) *UserService {
	return NewUserService(repo, tokens, mailer, nil, "http://localhost:3000", "noreply@memories.test")
}

func registerTestUser(t *testing.T, service *UserService, email, password string) types.User {
	t.Helper()
	user, err := service.Register(context.Background(), RegisterInput{
		FirstName: "Test",
		LastName:  "User",
		Username:  "testuser",
		Email:     email,
		Password:  password,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return user
}

func TestRegisterValidation(t *testing.T) {
	service := newTestUserService(newFakeUserRepo(), newFakeTokenRepo(), &fakeMailer{})
	ctx := context.Background()

	_, err := service.Register(ctx, RegisterInput{
		FirstName: "A", LastName: "B", Username: "ab", Email: "", Password: "secret1",
	})
	if !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}

	_, err = service.Register(ctx, RegisterInput{
		FirstName: "A", LastName: "B", Username: "ab", Email: "a@x.com", Password: "short",
	})
	if !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	service := newTestUserService(newFakeUserRepo(), newFakeTokenRepo(), &fakeMailer{})
	registerTestUser(t, service, "a@x.com", "secret1")

	_, err := service.Register(context.Background(), RegisterInput{
		FirstName: "Other", LastName: "Name", Username: "other", Email: "a@x.com", Password: "different9",
	})
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestRegisterHashesPassword(t *testing.T) {
	repo := newFakeUserRepo()
	service := newTestUserService(repo, newFakeTokenRepo(), &fakeMailer{})
	user := registerTestUser(t, service, "a@x.com", "secret1")

	stored := repo.users[user.ID]
	if stored.PasswordHash == "secret1" || stored.PasswordHash == "" {
		t.Fatalf("password stored in the clear: %q", stored.PasswordHash)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestLogin(t *testing.T) {
	service := newTestUserService(newFakeUserRepo(), newFakeTokenRepo(), &fakeMailer{})
	registered := registerTestUser(t, service, "a@x.com", "secret1")
	ctx := context.Background()

	user, err := service.Login(ctx, "a@x.com", "secret1")
	if err != nil {
		t.Fatalf("login with correct password: %v", err)
	}
	if user.ID != registered.ID {
		t.Fatalf("unexpected user id: %d", user.ID)
	}

	if _, err := service.Login(ctx, "a@x.com", "wrong12"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	// Single-character mutation must fail too.
	if _, err := service.Login(ctx, "a@x.com", "secret2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for mutated password, got %v", err)
	}
	if _, err := service.Login(ctx, "a@x.com", "short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if _, err := service.Login(ctx, "missing@x.com", "secret1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateProfileMerges(t *testing.T) {
	repo := newFakeUserRepo()
	service := newTestUserService(repo, newFakeTokenRepo(), &fakeMailer{})
	user := registerTestUser(t, service, "a@x.com", "secret1")

	updated, err := service.UpdateProfile(context.Background(), user.ID, UpdateProfileInput{
		Bio:     "hello there",
		LivesIn: "Lagos",
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Bio != "hello there" || updated.LivesIn != "Lagos" {
		t.Fatalf("fields not applied: %+v", updated)
	}
	if updated.FirstName != "Test" || updated.Email != "a@x.com" {
		t.Fatalf("omitted fields not preserved: %+v", updated)
	}

	tooLong := strings.Repeat("x", types.MaxBioLength+1)
	if _, err := service.UpdateProfile(context.Background(), user.ID, UpdateProfileInput{Bio: tooLong}); !errors.Is(err, ErrBioTooLong) {
		t.Fatalf("expected ErrBioTooLong, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	service := newTestUserService(newFakeUserRepo(), newFakeTokenRepo(), &fakeMailer{})
	user := registerTestUser(t, service, "a@x.com", "secret1")
	ctx := context.Background()

	if err := service.ChangePassword(ctx, user.ID, "wrong12", "newsecret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := service.ChangePassword(ctx, user.ID, "secret1", "short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if err := service.ChangePassword(ctx, user.ID, "secret1", "newsecret"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := service.Login(ctx, "a@x.com", "newsecret"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, err := service.Login(ctx, "a@x.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still valid")
	}
}

func TestToggleFollow(t *testing.T) {
	repo := newFakeUserRepo()
	service := newTestUserService(repo, newFakeTokenRepo(), &fakeMailer{})
	ctx := context.Background()

	target, _ := repo.Create(ctx, types.User{Username: "target", Email: "t@x.com"})
	actor, _ := repo.Create(ctx, types.User{Username: "actor", Email: "b@x.com"})

	followed, err := service.ToggleFollow(ctx, target.ID, actor.ID)
	if err != nil {
		t.Fatalf("follow: %v", err)
	}
	if !followed {
		t.Fatal("expected first toggle to follow")
	}
	if got := repo.users[target.ID].Followers; len(got) != 1 || got[0] != actor.ID {
		t.Fatalf("followers not updated: %v", got)
	}
	if got := repo.users[actor.ID].Following; len(got) != 1 || got[0] != target.ID {
		t.Fatalf("following not updated: %v", got)
	}

	// Second invocation returns to the unfollowed state.
	followed, err = service.ToggleFollow(ctx, target.ID, actor.ID)
	if err != nil {
		t.Fatalf("unfollow: %v", err)
	}
	if followed {
		t.Fatal("expected second toggle to unfollow")
	}
	if got := repo.users[target.ID].Followers; len(got) != 0 {
		t.Fatalf("followers not cleared: %v", got)
	}
	if got := repo.users[actor.ID].Following; len(got) != 0 {
		t.Fatalf("following not cleared: %v", got)
	}
}

func TestToggleFollowSelf(t *testing.T) {
	repo := newFakeUserRepo()
	service := newTestUserService(repo, newFakeTokenRepo(), &fakeMailer{})
	user, _ := repo.Create(context.Background(), types.User{Username: "solo", Email: "s@x.com"})

	if _, err := service.ToggleFollow(context.Background(), user.ID, user.ID); !errors.Is(err, ErrSelfFollow) {
		t.Fatalf("expected ErrSelfFollow, got %v", err)
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	repo := newFakeUserRepo()
	tokens := newFakeTokenRepo()
	mailer := &fakeMailer{}
	service := newTestUserService(repo, tokens, mailer)
	ctx := context.Background()

	registerTestUser(t, service, "a@x.com", "secret1")

	if err := service.ForgotPassword(ctx, "missing@x.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown email, got %v", err)
	}

	if err := service.ForgotPassword(ctx, "a@x.com"); err != nil {
		t.Fatalf("forgot password: %v", err)
	}
	if len(tokens.tokens) != 1 {
		t.Fatalf("expected one stored token, got %d", len(tokens.tokens))
	}
	raw := mailer.lastResetToken(t)

	// Only the hash is stored.
	for _, token := range tokens.tokens {
		if token.TokenHash == raw {
			t.Fatal("raw token stored in the database")
		}
	}

	// A second request replaces the first token.
	if err := service.ForgotPassword(ctx, "a@x.com"); err != nil {
		t.Fatalf("second forgot password: %v", err)
	}
	if len(tokens.tokens) != 1 {
		t.Fatalf("expected prior token replaced, got %d tokens", len(tokens.tokens))
	}
	raw = mailer.lastResetToken(t)

	if err := service.ResetPassword(ctx, raw, "brandnew1"); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	if _, err := service.Login(ctx, "a@x.com", "brandnew1"); err != nil {
		t.Fatalf("login with reset password: %v", err)
	}

	// The consumed token is gone; replay fails.
	if err := service.ResetPassword(ctx, raw, "another99"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected consumed token to be rejected, got %v", err)
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	repo := newFakeUserRepo()
	tokens := newFakeTokenRepo()
	mailer := &fakeMailer{}
	service := newTestUserService(repo, tokens, mailer)
	ctx := context.Background()

	registerTestUser(t, service, "a@x.com", "secret1")
	if err := service.ForgotPassword(ctx, "a@x.com"); err != nil {
		t.Fatalf("forgot password: %v", err)
	}
	raw := mailer.lastResetToken(t)

	for id, token := range tokens.tokens {
		token.ExpiresAt = time.Now().Add(-time.Minute)
		tokens.tokens[id] = token
	}

	if err := service.ResetPassword(ctx, raw, "brandnew1"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestResetPasswordBadToken(t *testing.T) {
	service := newTestUserService(newFakeUserRepo(), newFakeTokenRepo(), &fakeMailer{})

	if err := service.ResetPassword(context.Background(), "nosuchtoken", "brandnew1"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken, got %v", err)
	}
	if err := service.ResetPassword(context.Background(), "nosuchtoken", "short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
}
