package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/memories-social/apiserver/types"
)

const userColumns = `id, first_name, last_name, username, email, password_hash, is_admin,
		profile_photo, cover_photo, bio, followers, following,
		lives_in, works_at, relationship, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	var followersJSON, followingJSON []byte
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.IsAdmin,
		&user.ProfilePhoto,
		&user.CoverPhoto,
		&user.Bio,
		&followersJSON,
		&followingJSON,
		&user.LivesIn,
		&user.WorksAt,
		&user.Relationship,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return types.User{}, err
	}

	_ = json.Unmarshal(followersJSON, &user.Followers)
	_ = json.Unmarshal(followingJSON, &user.Following)
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) List(ctx context.Context) ([]types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []types.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Followers == nil {
		user.Followers = []int{}
	}
	if user.Following == nil {
		user.Following = []int{}
	}

	followersJSON, err := json.Marshal(user.Followers)
	if err != nil {
		return types.User{}, err
	}
	followingJSON, err := json.Marshal(user.Following)
	if err != nil {
		return types.User{}, err
	}

	const query = `
		INSERT INTO users (first_name, last_name, username, email, password_hash, is_admin,
			profile_photo, cover_photo, bio, followers, following,
			lives_in, works_at, relationship, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.FirstName,
		user.LastName,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.IsAdmin,
		user.ProfilePhoto,
		user.CoverPhoto,
		user.Bio,
		followersJSON,
		followingJSON,
		user.LivesIn,
		user.WorksAt,
		user.Relationship,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now()

	const query = `
		UPDATE users
		SET first_name = $1,
			last_name = $2,
			username = $3,
			email = $4,
			profile_photo = $5,
			cover_photo = $6,
			bio = $7,
			lives_in = $8,
			works_at = $9,
			relationship = $10,
			updated_at = $11
		WHERE id = $12`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.FirstName,
		user.LastName,
		user.Username,
		user.Email,
		user.ProfilePhoto,
		user.CoverPhoto,
		user.Bio,
		user.LivesIn,
		user.WorksAt,
		user.Relationship,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	const query = `
		UPDATE users
		SET password_hash = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, passwordHash, time.Now(), id)
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

func (r *UserRepository) UpdateFollowers(ctx context.Context, id int, followers []int) error {
	if followers == nil {
		followers = []int{}
	}
	followersJSON, err := json.Marshal(followers)
	if err != nil {
		return err
	}

	const query = `
		UPDATE users
		SET followers = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, followersJSON, time.Now(), id)
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

func (r *UserRepository) UpdateFollowing(ctx context.Context, id int, following []int) error {
	if following == nil {
		following = []int{}
	}
	followingJSON, err := json.Marshal(following)
	if err != nil {
		return err
	}

	const query = `
		UPDATE users
		SET following = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, followingJSON, time.Now(), id)
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

func (r *UserRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM users WHERE id = $1`
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
