package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/memories-social/apiserver/internal/services"
	"github.com/memories-social/apiserver/types"
)

// PostHandler provides HTTP handlers for posts.
type PostHandler struct {
	postService *services.PostService
}

// NewPostHandler constructs a PostHandler with the provided service.
func NewPostHandler(postService *services.PostService) *PostHandler {
	return &PostHandler{postService: postService}
}

// PostRouter registers post routes on the given router.
func PostRouter(r chi.Router, postService *services.PostService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewPostHandler(postService)

	r.With(authMiddleware).Post("/create-post", handler.CreatePost)
	r.Get("/get-all-posts", handler.GetAllPosts)
	r.Get("/get-post/{postID}", handler.GetPost)
	r.With(authMiddleware).Patch("/update-post/{postID}", handler.UpdatePost)
	r.With(authMiddleware).Delete("/delete-post/{postID}", handler.DeletePost)
	r.With(authMiddleware).Patch("/like/{postID}", handler.LikePost)
	r.Get("/{userID}/timeline", handler.Timeline)
	r.With(authMiddleware).Patch("/comment/post", handler.AddComment)
}

type PostUpsertRequest struct {
	Title string `json:"title"`
	Image string `json:"image"`
}

// CreatePost stores a post authored by the authenticated user.
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req PostUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	post, err := h.postService.Create(r.Context(), caller.ID, req.Title, req.Image)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create post")
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// GetAllPosts returns every post.
func (h *PostHandler) GetAllPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.postService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list posts")
		return
	}
	if posts == nil {
		posts = []types.Post{}
	}
	writeJSON(w, http.StatusOK, posts)
}

// GetPost returns one post by id.
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.postService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "post not found", "failed to fetch post")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// UpdatePost overwrites a post's title and image.
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req PostUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	post, err := h.postService.Update(r.Context(), id, req.Title, req.Image)
	if err != nil {
		writeServiceError(w, err, "post not found", "failed to update post")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// DeletePost removes a post by id. The authenticated caller must be the
// author, or an admin.
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.postService.Delete(r.Context(), id, caller); err != nil {
		writeServiceError(w, err, "post not found", "failed to delete post")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "post deleted successfully"})
}

// LikePost flips the authenticated user's like on a post.
func (h *PostHandler) LikePost(w http.ResponseWriter, r *http.Request) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	liked, err := h.postService.ToggleLike(r.Context(), id, caller.ID)
	if err != nil {
		writeServiceError(w, err, "post not found", "unable to like, try again later")
		return
	}

	message := "post unliked"
	if liked {
		message = "post liked"
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

type CommentRequest struct {
	PostID       int64  `json:"postId"`
	ProfileImage string `json:"profileImage"`
	Comment      string `json:"comment"`
}

// AddComment appends a comment by the authenticated user to a post.
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	post, err := h.postService.AddComment(r.Context(), req.PostID, types.Comment{
		UserID:       caller.ID,
		Username:     caller.Username,
		ProfileImage: req.ProfileImage,
		Comment:      req.Comment,
	})
	if err != nil {
		writeServiceError(w, err, "post not found", "failed to add comment")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// Timeline assembles the merged feed for the user in the route.
func (h *PostHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil || userID < 1 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	posts, err := h.postService.Timeline(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to assemble timeline")
		return
	}
	if posts == nil {
		posts = []types.Post{}
	}
	writeJSON(w, http.StatusOK, posts)
}

func parsePostID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "postID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid post id")
	}
	return id, nil
}
