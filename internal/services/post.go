package services

import (
	"context"
	"strings"

	"github.com/memories-social/apiserver/types"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	List(ctx context.Context) ([]types.Post, error)
	ListByAuthor(ctx context.Context, userID int) ([]types.Post, error)
	Timeline(ctx context.Context, userID int) ([]types.Post, error)
	Get(ctx context.Context, id int64) (types.Post, error)
	Create(ctx context.Context, post types.Post) (types.Post, error)
	Update(ctx context.Context, post types.Post) (types.Post, error)
	UpdateLikes(ctx context.Context, id int64, likes []int) error
	UpdateComments(ctx context.Context, id int64, comments []types.Comment) error
	Delete(ctx context.Context, id int64) error
}

// PostService encapsulates post use-cases: CRUD, the like toggle,
// comment append, and timeline assembly.
type PostService struct {
	repo   PostRepository
	users  UserRepository
	events EventPublisher
}

func NewPostService(repo PostRepository, users UserRepository, events EventPublisher) *PostService {
	return &PostService{
		repo:   repo,
		users:  users,
		events: events,
	}
}

// Create stores a post authored by the given user.
func (s *PostService) Create(ctx context.Context, authorID int, title, image string) (types.Post, error) {
	post, err := s.repo.Create(ctx, types.Post{
		UserID: authorID,
		Title:  title,
		Image:  image,
	})
	if err != nil {
		return types.Post{}, err
	}

	publishActivity(ctx, s.events, ActivityEvent{
		Type:    EventPostCreated,
		ActorID: authorID,
		PostID:  post.ID,
	})
	return post, nil
}

func (s *PostService) List(ctx context.Context) ([]types.Post, error) {
	return s.repo.List(ctx)
}

func (s *PostService) Get(ctx context.Context, id int64) (types.Post, error) {
	return s.repo.Get(ctx, id)
}

// Update overwrites title and image of an existing post.
func (s *PostService) Update(ctx context.Context, id int64, title, image string) (types.Post, error) {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Post{}, err
	}

	post.Title = title
	post.Image = image
	return s.repo.Update(ctx, post)
}

// Delete removes a post by id. Only the author may delete it; admins
// may delete any post.
func (s *PostService) Delete(ctx context.Context, id int64, caller types.User) error {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if post.UserID != caller.ID && !caller.IsAdmin {
		return ErrNotPostAuthor
	}
	return s.repo.Delete(ctx, id)
}

// ToggleLike flips the user's membership in the post's likes list.
// Returns true when the call resulted in a like.
func (s *PostService) ToggleLike(ctx context.Context, postID int64, userID int) (bool, error) {
	post, err := s.repo.Get(ctx, postID)
	if err != nil {
		return false, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}

	if post.LikedBy(user.ID) {
		post.Likes = removeID(post.Likes, user.ID)
		if err := s.repo.UpdateLikes(ctx, post.ID, post.Likes); err != nil {
			return false, err
		}
		return false, nil
	}

	post.Likes = append(post.Likes, user.ID)
	if err := s.repo.UpdateLikes(ctx, post.ID, post.Likes); err != nil {
		return false, err
	}

	publishActivity(ctx, s.events, ActivityEvent{
		Type:         EventPostLiked,
		ActorID:      user.ID,
		TargetUserID: post.UserID,
		PostID:       post.ID,
	})
	return true, nil
}

// AddComment appends a comment to the post's embedded comment list and
// returns the updated post.
func (s *PostService) AddComment(ctx context.Context, postID int64, comment types.Comment) (types.Post, error) {
	if strings.TrimSpace(comment.Comment) == "" {
		return types.Post{}, ErrMissingFields
	}

	post, err := s.repo.Get(ctx, postID)
	if err != nil {
		return types.Post{}, err
	}

	post.Comments = append(post.Comments, comment)
	if err := s.repo.UpdateComments(ctx, post.ID, post.Comments); err != nil {
		return types.Post{}, err
	}

	publishActivity(ctx, s.events, ActivityEvent{
		Type:         EventPostCommented,
		ActorID:      comment.UserID,
		TargetUserID: post.UserID,
		PostID:       post.ID,
	})
	return post, nil
}

// Timeline returns the user's own posts merged with posts by everyone
// the user follows, newest first. Unpaginated.
func (s *PostService) Timeline(ctx context.Context, userID int) ([]types.Post, error) {
	return s.repo.Timeline(ctx, userID)
}

// ListByAuthor returns the posts authored by a single user, newest first.
func (s *PostService) ListByAuthor(ctx context.Context, userID int) ([]types.Post, error) {
	return s.repo.ListByAuthor(ctx, userID)
}
