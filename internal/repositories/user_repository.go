package repositories

import (
	"context"
	"errors"
	"strconv"

	"device-tracker/internal/models"

	"github.com/jackc/pgx/v5"
)

type UserRepository struct {
	DB DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if u.AccessLevel == "" {
		u.AccessLevel = "operator" // Default access level
	}
	err := r.DB.QueryRow(ctx,
		`INSERT INTO users(name, email, password_hash, access_level, is_active)
         VALUES($1, $2, $3, $4, TRUE)
         RETURNING id, is_active, created_at, updated_at`,
		u.Name, u.Email, u.PasswordHash, u.AccessLevel,
	).Scan(&u.ID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return storeError("user.create", err)
}

func (r *UserRepository) Get(ctx context.Context, id int) (*models.User, error) {
	return r.getBy(ctx, "id", id, strconv.Itoa(id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getBy(ctx, "email", email, email)
}

func (r *UserRepository) getBy(ctx context.Context, column string, value any, key string) (*models.User, error) {
	row := r.DB.QueryRow(ctx,
		`SELECT id, name, email, password_hash, access_level, is_active, created_at, updated_at
         FROM users WHERE `+column+`=$1`, value)

	var user models.User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&user.AccessLevel, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NotFound("user", key)
	}
	if err != nil {
		return nil, storeError("user.get", err)
	}
	return &user, nil
}
