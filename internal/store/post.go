package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/memories-social/apiserver/types"
)

const postColumns = `id, user_id, title, image, likes, comments, created_at, updated_at`

// PostRepository handles persistence for posts.
type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

func scanPost(row rowScanner) (types.Post, error) {
	var post types.Post
	var likesJSON, commentsJSON []byte
	err := row.Scan(
		&post.ID,
		&post.UserID,
		&post.Title,
		&post.Image,
		&likesJSON,
		&commentsJSON,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		return types.Post{}, err
	}

	_ = json.Unmarshal(likesJSON, &post.Likes)
	_ = json.Unmarshal(commentsJSON, &post.Comments)
	return post, nil
}

func (r *PostRepository) collect(rows *sql.Rows) ([]types.Post, error) {
	defer rows.Close()

	var posts []types.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *PostRepository) List(ctx context.Context) ([]types.Post, error) {
	const query = `
		SELECT ` + postColumns + `
		FROM posts
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *PostRepository) ListByAuthor(ctx context.Context, userID int) ([]types.Post, error) {
	const query = `
		SELECT ` + postColumns + `
		FROM posts
		WHERE user_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// Timeline returns the user's own posts merged with posts authored by
// everyone the user follows, newest first. The following list lives in a
// JSONB column, so the join unnests it in a subquery.
func (r *PostRepository) Timeline(ctx context.Context, userID int) ([]types.Post, error) {
	const query = `
		SELECT ` + postColumns + `
		FROM posts
		WHERE user_id = $1
		   OR user_id IN (
			SELECT (jsonb_array_elements_text(u.following))::int
			FROM users u
			WHERE u.id = $1)
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *PostRepository) Get(ctx context.Context, id int64) (types.Post, error) {
	const query = `
		SELECT ` + postColumns + `
		FROM posts
		WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, err
	}
	return post, nil
}

func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Likes == nil {
		post.Likes = []int{}
	}
	if post.Comments == nil {
		post.Comments = []types.Comment{}
	}

	likesJSON, err := json.Marshal(post.Likes)
	if err != nil {
		return types.Post{}, err
	}
	commentsJSON, err := json.Marshal(post.Comments)
	if err != nil {
		return types.Post{}, err
	}

	const query = `
		INSERT INTO posts (user_id, title, image, likes, comments, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		post.UserID,
		post.Title,
		post.Image,
		likesJSON,
		commentsJSON,
		post.CreatedAt,
		post.UpdatedAt,
	).Scan(&post.ID); err != nil {
		return types.Post{}, err
	}
	return post, nil
}

func (r *PostRepository) Update(ctx context.Context, post types.Post) (types.Post, error) {
	post.UpdatedAt = time.Now()

	const query = `
		UPDATE posts
		SET title = $1,
			image = $2,
			updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, post.Title, post.Image, post.UpdatedAt, post.ID)
	if err != nil {
		return types.Post{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Post{}, err
	}
	if affected == 0 {
		return types.Post{}, ErrNotFound
	}
	return post, nil
}

func (r *PostRepository) UpdateLikes(ctx context.Context, id int64, likes []int) error {
	if likes == nil {
		likes = []int{}
	}
	likesJSON, err := json.Marshal(likes)
	if err != nil {
		return err
	}

	const query = `
		UPDATE posts
		SET likes = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, likesJSON, time.Now(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostRepository) UpdateComments(ctx context.Context, id int64, comments []types.Comment) error {
	if comments == nil {
		comments = []types.Comment{}
	}
	commentsJSON, err := json.Marshal(comments)
	if err != nil {
		return err
	}

	const query = `
		UPDATE posts
		SET comments = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, commentsJSON, time.Now(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM posts WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
