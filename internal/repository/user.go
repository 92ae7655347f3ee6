package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/akash-mondal/feed-alpha/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type UserRepository interface {
	Upsert(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id int64) (*models.User, error)
	SetDMConsent(ctx context.Context, id int64, canDM bool) error
	AddFeedback(ctx context.Context, fb *models.Feedback) error
	ListFeedback(ctx context.Context, userID int64) ([]*models.Feedback, error)
}

type userRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewUserRepository(db *sqlx.DB, logger *zap.Logger) UserRepository {
	return &userRepository{db: db, logger: logger}
}

// Upsert refreshes the profile fields of a returning user and keeps their
// consent flag and creation time.
func (r *userRepository) Upsert(ctx context.Context, u *models.User) error {
	query := r.db.Rebind(`INSERT INTO users (id, first_name, last_name, username, can_dm, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET first_name = excluded.first_name,
			last_name = excluded.last_name, username = excluded.username`)
	_, err := r.db.ExecContext(ctx, query, u.ID, u.FirstName, u.LastName, u.Username, u.CanDM, u.CreatedAt)
	return err
}

func (r *userRepository) Get(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	query := r.db.Rebind(`SELECT id, first_name, last_name, username, can_dm, created_at FROM users WHERE id = ?`)
	if err := r.db.GetContext(ctx, &u, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) SetDMConsent(ctx context.Context, id int64, canDM bool) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET can_dm = ? WHERE id = ?`), canDM, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (r *userRepository) AddFeedback(ctx context.Context, fb *models.Feedback) error {
	query := r.db.Rebind(`INSERT INTO feedback (user_id, rating, comment, created_at) VALUES (?, ?, ?, ?) RETURNING id`)
	return r.db.QueryRowxContext(ctx, query, fb.UserID, fb.Rating, fb.Comment, fb.CreatedAt).Scan(&fb.ID)
}

func (r *userRepository) ListFeedback(ctx context.Context, userID int64) ([]*models.Feedback, error) {
	var out []*models.Feedback
	query := r.db.Rebind(`SELECT id, user_id, rating, comment, created_at FROM feedback WHERE user_id = ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &out, query, userID); err != nil {
		return nil, err
	}
	return out, nil
}
