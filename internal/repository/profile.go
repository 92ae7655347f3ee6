package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	Update(ctx context.Context, profile *models.Profile) error
	Get(ctx context.Context, userID int64, id string) (*models.Profile, error)
	GetByName(ctx context.Context, userID int64, name string) (*models.Profile, error)
	List(ctx context.Context, userID int64) ([]*models.Profile, error)
	Delete(ctx context.Context, userID int64, id string) error
}

type profileRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewProfileRepository(db *sqlx.DB, logger *zap.Logger) ProfileRepository {
	return &profileRepository{db: db, logger: logger}
}

type profileRow struct {
	ID             string    `db:"id"`
	UserID         int64     `db:"user_id"`
	Name           string    `db:"name"`
	Rules          string    `db:"rules"`
	TrackedSenders string    `db:"tracked_senders"`
	CreatedAt      time.Time `db:"created_at"`
}

type profileLink struct {
	ProfileID string `db:"profile_id"`
	TopicID   string `db:"topic_id"`
}

const profileColumns = `id, user_id, name, rules, tracked_senders, created_at`

func (r *profileRepository) Create(ctx context.Context, p *models.Profile) error {
	rules, tracked, err := profileColumnsJSON(p)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := tx.Rebind(`INSERT INTO signal_profiles (` + profileColumns + `) VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, query, p.ID, p.UserID, p.Name, rules, tracked, p.CreatedAt); err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	if err := insertLinks(ctx, tx, p.ID, p.TopicIDs); err != nil {
		return err
	}
	return tx.Commit()
}

// Update rewrites name, rules and tracked senders and replaces the topic links.
func (r *profileRepository) Update(ctx context.Context, p *models.Profile) error {
	rules, tracked, err := profileColumnsJSON(p)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := tx.Rebind(`UPDATE signal_profiles SET name = ?, rules = ?, tracked_senders = ? WHERE id = ? AND user_id = ?`)
	res, err := tx.ExecContext(ctx, query, p.Name, rules, tracked, p.ID, p.UserID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if err := expectRow(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM profile_topics WHERE profile_id = ?`), p.ID); err != nil {
		return fmt.Errorf("clear profile links: %w", err)
	}
	if err := insertLinks(ctx, tx, p.ID, p.TopicIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *profileRepository) Get(ctx context.Context, userID int64, id string) (*models.Profile, error) {
	return r.getOne(ctx, `SELECT `+profileColumns+` FROM signal_profiles WHERE id = ? AND user_id = ?`, id, userID)
}

// GetByName matches case-insensitively and returns the oldest match.
func (r *profileRepository) GetByName(ctx context.Context, userID int64, name string) (*models.Profile, error) {
	return r.getOne(ctx, `SELECT `+profileColumns+` FROM signal_profiles
		WHERE LOWER(name) = LOWER(?) AND user_id = ? ORDER BY created_at LIMIT 1`, name, userID)
}

func (r *profileRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.Profile, error) {
	var row profileRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	profiles, err := r.withLinks(ctx, []profileRow{row})
	if err != nil {
		return nil, err
	}
	return profiles[0], nil
}

func (r *profileRepository) List(ctx context.Context, userID int64) ([]*models.Profile, error) {
	var rows []profileRow
	query := r.db.Rebind(`SELECT ` + profileColumns + ` FROM signal_profiles WHERE user_id = ? ORDER BY created_at, id`)
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}
	return r.withLinks(ctx, rows)
}

func (r *profileRepository) Delete(ctx context.Context, userID int64, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM signal_profiles WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if err := expectRow(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM profile_topics WHERE profile_id = ?`), id); err != nil {
		return fmt.Errorf("delete profile links: %w", err)
	}
	return tx.Commit()
}

// withLinks loads topic ids for all rows in one query. Links are returned
// in the member topics' list order.
func (r *profileRepository) withLinks(ctx context.Context, rows []profileRow) ([]*models.Profile, error) {
	profiles := make([]*models.Profile, 0, len(rows))
	if len(rows) == 0 {
		return profiles, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	query, args, err := sqlx.In(`SELECT pt.profile_id, pt.topic_id FROM profile_topics pt
		JOIN topics t ON t.id = pt.topic_id
		WHERE pt.profile_id IN (?) ORDER BY t.sort_order, t.id`, ids)
	if err != nil {
		return nil, err
	}
	var links []profileLink
	if err := r.db.SelectContext(ctx, &links, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	byProfile := make(map[string][]string, len(rows))
	for _, l := range links {
		byProfile[l.ProfileID] = append(byProfile[l.ProfileID], l.TopicID)
	}

	for _, row := range rows {
		p := &models.Profile{
			ID:        row.ID,
			UserID:    row.UserID,
			Name:      row.Name,
			TopicIDs:  byProfile[row.ID],
			CreatedAt: row.CreatedAt,
		}
		if p.TopicIDs == nil {
			p.TopicIDs = []string{}
		}
		if err := unmarshalColumn(row.Rules, &p.Rules); err != nil {
			return nil, fmt.Errorf("profile %s rules: %w", row.ID, err)
		}
		if err := unmarshalColumn(row.TrackedSenders, &p.TrackedSenders); err != nil {
			return nil, fmt.Errorf("profile %s tracked_senders: %w", row.ID, err)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

func insertLinks(ctx context.Context, tx *sqlx.Tx, profileID string, topicIDs []string) error {
	seen := make(map[string]bool, len(topicIDs))
	for _, topicID := range topicIDs {
		if seen[topicID] {
			continue
		}
		seen[topicID] = true
		query := tx.Rebind(`INSERT INTO profile_topics (profile_id, topic_id) VALUES (?, ?)`)
		if _, err := tx.ExecContext(ctx, query, profileID, topicID); err != nil {
			return fmt.Errorf("link topic %s: %w", topicID, err)
		}
	}
	return nil
}

func profileColumnsJSON(p *models.Profile) (string, string, error) {
	rules, err := marshalColumn(p.Rules)
	if err != nil {
		return "", "", err
	}
	tracked, err := marshalColumn(p.TrackedSenders)
	if err != nil {
		return "", "", err
	}
	return rules, tracked, nil
}
