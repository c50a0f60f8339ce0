package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/memories-social/apiserver/internal/services"
	"github.com/memories-social/apiserver/internal/storage"
	"github.com/memories-social/apiserver/internal/store"
	"github.com/memories-social/apiserver/types"
)

const (
	maxUploadMemory = 32 << 20
	formFieldImage  = "image"
)

// UserHandler provides HTTP handlers for accounts and the follow graph.
type UserHandler struct {
	userService *services.UserService
	storage     *storage.Storage
	secret      []byte
	tokenTTL    time.Duration
}

// NewUserHandler constructs a UserHandler with the provided dependencies.
// storage may be nil when image uploads are disabled.
func NewUserHandler(userService *services.UserService, st *storage.Storage, jwtSecret string, tokenTTL time.Duration) *UserHandler {
	return &UserHandler{
		userService: userService,
		storage:     st,
		secret:      []byte(jwtSecret),
		tokenTTL:    tokenTTL,
	}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, userService *services.UserService, st *storage.Storage, jwtSecret string, tokenTTL time.Duration, authMiddleware func(http.Handler) http.Handler) {
	handler := NewUserHandler(userService, st, jwtSecret, tokenTTL)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Get("/getAllUsers", handler.GetAllUsers)
	r.With(authMiddleware).Get("/getuser", handler.GetUser)
	r.Get("/isLoggedIn", handler.IsLoggedIn)
	r.With(authMiddleware).Patch("/update", handler.UpdateProfile)
	r.Post("/change-password/{userID}", handler.ChangePassword)
	r.With(authMiddleware).Delete("/delete", handler.DeleteAccount)
	r.Post("/forgot-password", handler.ForgotPassword)
	r.Put("/reset-password/{resetToken}", handler.ResetPassword)
	r.Put("/{userID}/follow", handler.ToggleFollow)
}

type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// Register creates a new account and returns a signed token. The request
// is either JSON or a multipart form carrying an optional image file.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	var imageURL string

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		req = RegisterRequest{
			FirstName: r.FormValue("firstName"),
			LastName:  r.FormValue("lastName"),
			Username:  r.FormValue("username"),
			Email:     r.FormValue("email"),
			Password:  r.FormValue("password"),
		}
		url, err := h.uploadImage(r)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not upload file")
			return
		}
		imageURL = url
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request")
			return
		}
	}

	user, err := h.userService.Register(r.Context(), services.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		ImageURL:  imageURL,
	})
	if err != nil {
		writeServiceError(w, err, "user not found", "failed to create user")
		return
	}

	token, err := issueToken(user.ID, h.secret, h.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, User: user})
}

// Login verifies credentials and returns a signed token.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "user not found, please signup")
			return
		}
		writeServiceError(w, err, "user not found", "failed to authenticate")
		return
	}

	token, err := issueToken(user.ID, h.secret, h.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

// GetUser returns the authenticated user's profile.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetAllUsers returns every user profile.
func (h *UserHandler) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []types.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// IsLoggedIn answers a best-effort boolean. It never errors: every
// failing branch returns 200 with false.
func (h *UserHandler) IsLoggedIn(w http.ResponseWriter, r *http.Request) {
	tokenString, err := bearerToken(r)
	if err != nil {
		writeJSON(w, http.StatusOK, false)
		return
	}

	userID, err := parseTokenUserID(tokenString, h.secret)
	if err != nil {
		writeJSON(w, http.StatusOK, false)
		return
	}

	if _, err := h.userService.GetByID(r.Context(), userID); err != nil {
		writeJSON(w, http.StatusOK, false)
		return
	}
	writeJSON(w, http.StatusOK, true)
}

type UpdateProfileRequest struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Bio          string `json:"bio"`
	LivesIn      string `json:"livesIn"`
	WorksAt      string `json:"worksAt"`
	Relationship string `json:"relationship"`
}

// UpdateProfile merges the supplied fields over the stored profile. An
// uploaded image replaces both photo URLs.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateProfileRequest
	var imageURL string

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		req = UpdateProfileRequest{
			FirstName:    r.FormValue("firstName"),
			LastName:     r.FormValue("lastName"),
			Username:     r.FormValue("username"),
			Email:        r.FormValue("email"),
			Bio:          r.FormValue("bio"),
			LivesIn:      r.FormValue("livesIn"),
			WorksAt:      r.FormValue("worksAt"),
			Relationship: r.FormValue("relationship"),
		}
		url, err := h.uploadImage(r)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not upload file")
			return
		}
		imageURL = url
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request")
			return
		}
	}

	user, err := h.userService.UpdateProfile(r.Context(), caller.ID, services.UpdateProfileInput{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Username:     req.Username,
		Email:        req.Email,
		Bio:          req.Bio,
		LivesIn:      req.LivesIn,
		WorksAt:      req.WorksAt,
		Relationship: req.Relationship,
		ImageURL:     imageURL,
	})
	if err != nil {
		writeServiceError(w, err, "user not found", "failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	Password    string `json:"password"`
}

// ChangePassword verifies the old password for the user in the route and
// stores the new one.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil || userID < 1 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.userService.ChangePassword(r.Context(), userID, req.OldPassword, req.Password); err != nil {
		writeServiceError(w, err, "user not found", "failed to change password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password successfully changed"})
}

// DeleteAccount removes the authenticated user's record.
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.userService.Delete(r.Context(), caller.ID); err != nil {
		writeServiceError(w, err, "user not found", "failed to delete user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted successfully"})
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword issues a reset token and emails the reset link.
func (h *UserHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := h.userService.ForgotPassword(r.Context(), req.Email); err != nil {
		writeServiceError(w, err, "user not found", "email not sent, please try again later")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "reset email sent"})
}

type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// ResetPassword consumes the raw token from the route and stores the new
// password.
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	rawToken := chi.URLParam(r, "resetToken")

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.userService.ResetPassword(r.Context(), rawToken, req.Password); err != nil {
		writeServiceError(w, err, "user not found", "failed to reset password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password successfully changed"})
}

type FollowRequest struct {
	UserID int `json:"userId"`
}

// ToggleFollow flips the follow relationship between the acting user in
// the body and the target user in the route.
func (h *UserHandler) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	targetID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil || targetID < 1 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req FollowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	followed, err := h.userService.ToggleFollow(r.Context(), targetID, req.UserID)
	if err != nil {
		writeServiceError(w, err, "user not found", "failed to toggle follow")
		return
	}

	message := "user unfollowed successfully"
	if followed {
		message = "user followed successfully"
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

func isMultipart(r *http.Request) bool {
	contentType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return contentType == "multipart/form-data"
}

// uploadImage stores the optional image file from a parsed multipart form
// and returns its public URL, or "" when no file was attached.
func (h *UserHandler) uploadImage(r *http.Request) (string, error) {
	if r.MultipartForm == nil {
		return "", nil
	}
	files := r.MultipartForm.File[formFieldImage]
	if len(files) == 0 {
		return "", nil
	}
	if h.storage == nil {
		return "", errors.New("object storage is not configured")
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	return h.storage.UploadImage(r.Context(), fileHeader.Filename, file, fileHeader.Size, fileHeader.Header.Get("Content-Type"))
}
