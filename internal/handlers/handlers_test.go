package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/memories-social/apiserver/internal/services"
	"github.com/memories-social/apiserver/internal/store"
	"github.com/memories-social/apiserver/types"
)

const testJWTSecret = "test-secret"

type memUserRepo struct {
	nextID int
	users  map[int]types.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{nextID: 1, users: map[int]types.User{}}
}

func (r *memUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) List(_ context.Context) ([]types.User, error) {
	var users []types.User
	for _, user := range r.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *memUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
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

func (r *memUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	existing, ok := r.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	user.PasswordHash = existing.PasswordHash
	user.IsAdmin = existing.IsAdmin
	user.Followers = existing.Followers
	user.Following = existing.Following
	user.UpdatedAt = time.Now()
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) UpdatePassword(_ context.Context, id int, passwordHash string) error {
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	r.users[id] = user
	return nil
}

func (r *memUserRepo) UpdateFollowers(_ context.Context, id int, followers []int) error {
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.Followers = followers
	r.users[id] = user
	return nil
}

func (r *memUserRepo) UpdateFollowing(_ context.Context, id int, following []int) error {
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.Following = following
	r.users[id] = user
	return nil
}

func (r *memUserRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type memPostRepo struct {
	nextID int64
	posts  map[int64]types.Post
	users  *memUserRepo
}

func newMemPostRepo(users *memUserRepo) *memPostRepo {
	return &memPostRepo{nextID: 1, posts: map[int64]types.Post{}, users: users}
}

func (r *memPostRepo) sorted(keep func(types.Post) bool) []types.Post {
	var posts []types.Post
	for _, post := range r.posts {
		if keep(post) {
			posts = append(posts, post)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts
}

func (r *memPostRepo) List(_ context.Context) ([]types.Post, error) {
	return r.sorted(func(types.Post) bool { return true }), nil
}

func (r *memPostRepo) ListByAuthor(_ context.Context, userID int) ([]types.Post, error) {
	return r.sorted(func(p types.Post) bool { return p.UserID == userID }), nil
}

func (r *memPostRepo) Timeline(ctx context.Context, userID int) ([]types.Post, error) {
	// Matches the SQL behaviour: an unknown user simply has no feed.
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		user = types.User{ID: userID}
	}
	return r.sorted(func(p types.Post) bool {
		return p.UserID == userID || user.Follows(p.UserID)
	}), nil
}

func (r *memPostRepo) Get(_ context.Context, id int64) (types.Post, error) {
	post, ok := r.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	return post, nil
}

func (r *memPostRepo) Create(_ context.Context, post types.Post) (types.Post, error) {
	post.ID = r.nextID
	r.nextID++
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Likes == nil {
		post.Likes = []int{}
	}
	if post.Comments == nil {
		post.Comments = []types.Comment{}
	}
	r.posts[post.ID] = post
	return post, nil
}

func (r *memPostRepo) Update(_ context.Context, post types.Post) (types.Post, error) {
	existing, ok := r.posts[post.ID]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	existing.Title = post.Title
	existing.Image = post.Image
	existing.UpdatedAt = time.Now()
	r.posts[post.ID] = existing
	return existing, nil
}

func (r *memPostRepo) UpdateLikes(_ context.Context, id int64, likes []int) error {
	post, ok := r.posts[id]
	if !ok {
		return store.ErrNotFound
	}
	post.Likes = likes
	r.posts[id] = post
	return nil
}

func (r *memPostRepo) UpdateComments(_ context.Context, id int64, comments []types.Comment) error {
	post, ok := r.posts[id]
	if !ok {
		return store.ErrNotFound
	}
	post.Comments = comments
	r.posts[id] = post
	return nil
}

func (r *memPostRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.posts[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.posts, id)
	return nil
}

type memTokenRepo struct {
	nextID int
	tokens map[int]types.PasswordResetToken
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{nextID: 1, tokens: map[int]types.PasswordResetToken{}}
}

func (r *memTokenRepo) GetByHash(_ context.Context, tokenHash string) (types.PasswordResetToken, error) {
	for _, token := range r.tokens {
		if token.TokenHash == tokenHash {
			return token, nil
		}
	}
	return types.PasswordResetToken{}, store.ErrNotFound
}

func (r *memTokenRepo) Create(_ context.Context, token types.PasswordResetToken) (types.PasswordResetToken, error) {
	token.ID = r.nextID
	r.nextID++
	r.tokens[token.ID] = token
	return token, nil
}

func (r *memTokenRepo) DeleteByUser(_ context.Context, userID int) error {
	for id, token := range r.tokens {
		if token.UserID == userID {
			delete(r.tokens, id)
		}
	}
	return nil
}

func (r *memTokenRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.tokens[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.tokens, id)
	return nil
}

type memMailer struct {
	bodies []string
	to     []string
}

func (m *memMailer) Send(_ context.Context, _, htmlBody, to, _ string) error {
	m.bodies = append(m.bodies, htmlBody)
	m.to = append(m.to, to)
	return nil
}

type testEnv struct {
	router *chi.Mux
	users  *memUserRepo
	posts  *memPostRepo
	tokens *memTokenRepo
	mailer *memMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newMemUserRepo()
	posts := newMemPostRepo(users)
	tokens := newMemTokenRepo()
	mailer := &memMailer{}

	userService := services.NewUserService(users, tokens, mailer, nil, "http://localhost:3000", "noreply@memories.test")
	postService := services.NewPostService(posts, users, nil)
	auth := RequireAuth(userService, testJWTSecret)

	router := chi.NewRouter()
	router.Route("/users", func(r chi.Router) {
		UserRouter(r, userService, nil, testJWTSecret, time.Hour, auth)
		PostRouter(r, postService, auth)
	})

	return &testEnv{
		router: router,
		users:  users,
		posts:  posts,
		tokens: tokens,
		mailer: mailer,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

// register creates an account over HTTP and returns the issued token and
// user record.
func (e *testEnv) register(t *testing.T, username, email, password string) (string, types.User) {
	t.Helper()

	rr := e.do(t, http.MethodPost, "/users/register", "", RegisterRequest{
		FirstName: "First",
		LastName:  "Last",
		Username:  username,
		Email:     email,
		Password:  password,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d, body %s", email, rr.Code, rr.Body.String())
	}

	var resp AuthResponse
	decodeBody(t, rr, &resp)
	if resp.Token == "" {
		t.Fatalf("register %s: empty token", email)
	}
	return resp.Token, resp.User
}

func (e *testEnv) seedPost(t *testing.T, userID int, title string, age time.Duration) types.Post {
	t.Helper()

	post, err := e.posts.Create(context.Background(), types.Post{UserID: userID, Title: title})
	if err != nil {
		t.Fatalf("seed post: %v", err)
	}
	post.CreatedAt = time.Now().Add(-age)
	e.posts.posts[post.ID] = post
	return post
}

func wantStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status %d, want %d; body %s", rr.Code, want, rr.Body.String())
	}
}
