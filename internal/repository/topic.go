package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type TopicRepository interface {
	Create(ctx context.Context, topic *models.Topic) error
	List(ctx context.Context, userID int64) ([]*models.Topic, error)
	Get(ctx context.Context, userID int64, id string) (*models.Topic, error)
	GetMany(ctx context.Context, userID int64, ids []string) ([]*models.Topic, error)
	UpdateSnapshot(ctx context.Context, userID int64, id string, snap models.TopicSnapshot) error
	UpdateSettings(ctx context.Context, userID int64, id string, settings models.TopicSettings) error
	Delete(ctx context.Context, userID int64, id string) error
	Reorder(ctx context.Context, userID int64, orderedIDs []string) error
}

type topicRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewTopicRepository(db *sqlx.DB, logger *zap.Logger) TopicRepository {
	return &topicRepository{db: db, logger: logger}
}

type topicRow struct {
	ID                  string         `db:"id"`
	UserID              int64          `db:"user_id"`
	Kind                string         `db:"type"`
	DisplayName         string         `db:"display_name"`
	TwitterUsername     sql.NullString `db:"twitter_username"`
	TelegramChannelName sql.NullString `db:"telegram_channel_name"`
	TelegramChannelID   sql.NullInt64  `db:"telegram_channel_id"`
	ProfilePictureURL   sql.NullString `db:"profile_picture_url"`
	SummaryLength       string         `db:"summary_length"`
	CustomSummaryLength sql.NullInt64  `db:"custom_summary_length"`
	TrackedSenders      string         `db:"tracked_senders"`
	TwitterSummary      sql.NullString `db:"twitter_summary"`
	TelegramSummary     sql.NullString `db:"telegram_summary"`
	RawTweets           string         `db:"raw_tweets"`
	RawMessages         string         `db:"raw_messages"`
	LastUpdated         time.Time      `db:"last_updated"`
	Order               int            `db:"sort_order"`
}

const topicColumns = `id, user_id, type, display_name, twitter_username, telegram_channel_name,
	telegram_channel_id, profile_picture_url, summary_length, custom_summary_length, tracked_senders,
	twitter_summary, telegram_summary, raw_tweets, raw_messages, last_updated, sort_order`

func (row *topicRow) toModel() (*models.Topic, error) {
	t := &models.Topic{
		ID:                  row.ID,
		UserID:              row.UserID,
		Kind:                models.TopicKind(row.Kind),
		DisplayName:         row.DisplayName,
		TwitterUsername:     nullString(row.TwitterUsername),
		TelegramChannelName: nullString(row.TelegramChannelName),
		ProfilePictureURL:   nullString(row.ProfilePictureURL),
		SummaryLength:       models.ParseSummaryLength(row.SummaryLength),
		TwitterSummary:      nullString(row.TwitterSummary),
		TelegramSummary:     nullString(row.TelegramSummary),
		LastUpdated:         row.LastUpdated,
		Order:               row.Order,
	}
	if row.TelegramChannelID.Valid {
		id := row.TelegramChannelID.Int64
		t.TelegramChannelID = &id
	}
	if row.CustomSummaryLength.Valid {
		v := int(row.CustomSummaryLength.Int64)
		t.CustomSummaryLength = &v
	}
	if err := unmarshalColumn(row.TrackedSenders, &t.TrackedSenders); err != nil {
		return nil, fmt.Errorf("topic %s tracked_senders: %w", row.ID, err)
	}
	if err := unmarshalColumn(row.RawTweets, &t.RawTweets); err != nil {
		return nil, fmt.Errorf("topic %s raw_tweets: %w", row.ID, err)
	}
	if err := unmarshalColumn(row.RawMessages, &t.RawMessages); err != nil {
		return nil, fmt.Errorf("topic %s raw_messages: %w", row.ID, err)
	}
	return t, nil
}

// Create inserts the topic at the end of the user's list.
func (r *topicRepository) Create(ctx context.Context, topic *models.Topic) error {
	tracked, err := marshalColumn(topic.TrackedSenders)
	if err != nil {
		return err
	}
	tweets, err := marshalColumn(topic.RawTweets)
	if err != nil {
		return err
	}
	messages, err := marshalColumn(topic.RawMessages)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var count int
	if err := tx.GetContext(ctx, &count, tx.Rebind(`SELECT COUNT(*) FROM topics WHERE user_id = ?`), topic.UserID); err != nil {
		return err
	}
	topic.Order = count

	query := tx.Rebind(`INSERT INTO topics (` + topicColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = tx.ExecContext(ctx, query,
		topic.ID, topic.UserID, string(topic.Kind), topic.DisplayName, topic.TwitterUsername,
		topic.TelegramChannelName, topic.TelegramChannelID, topic.ProfilePictureURL,
		string(topic.SummaryLength), topic.CustomSummaryLength, tracked,
		topic.TwitterSummary, topic.TelegramSummary, tweets, messages, topic.LastUpdated, topic.Order)
	if err != nil {
		return fmt.Errorf("insert topic: %w", err)
	}
	return tx.Commit()
}

func (r *topicRepository) List(ctx context.Context, userID int64) ([]*models.Topic, error) {
	var rows []topicRow
	query := r.db.Rebind(`SELECT ` + topicColumns + ` FROM topics WHERE user_id = ? ORDER BY sort_order, id`)
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}
	return toTopics(rows)
}

func (r *topicRepository) Get(ctx context.Context, userID int64, id string) (*models.Topic, error) {
	var row topicRow
	query := r.db.Rebind(`SELECT ` + topicColumns + ` FROM topics WHERE id = ? AND user_id = ?`)
	err := r.db.GetContext(ctx, &row, query, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toModel()
}

// GetMany returns the user's topics among ids, in list order. Unknown ids
// are skipped.
func (r *topicRepository) GetMany(ctx context.Context, userID int64, ids []string) ([]*models.Topic, error) {
	if len(ids) == 0 {
		return []*models.Topic{}, nil
	}
	query, args, err := sqlx.In(`SELECT `+topicColumns+` FROM topics WHERE user_id = ? AND id IN (?) ORDER BY sort_order, id`, userID, ids)
	if err != nil {
		return nil, err
	}
	var rows []topicRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return toTopics(rows)
}

// UpdateSnapshot replaces summaries, raw batches, display data and
// last_updated in one statement, so readers never see a partial refresh.
func (r *topicRepository) UpdateSnapshot(ctx context.Context, userID int64, id string, snap models.TopicSnapshot) error {
	tweets, err := marshalColumn(snap.RawTweets)
	if err != nil {
		return err
	}
	messages, err := marshalColumn(snap.RawMessages)
	if err != nil {
		return err
	}

	query := r.db.Rebind(`UPDATE topics SET display_name = ?, profile_picture_url = ?, twitter_summary = ?,
		telegram_summary = ?, raw_tweets = ?, raw_messages = ?, last_updated = ?
		WHERE id = ? AND user_id = ?`)
	res, err := r.db.ExecContext(ctx, query, snap.DisplayName, snap.ProfilePictureURL, snap.TwitterSummary,
		snap.TelegramSummary, tweets, messages, snap.LastUpdated, id, userID)
	if err != nil {
		return fmt.Errorf("update topic snapshot: %w", err)
	}
	return expectRow(res)
}

// UpdateSettings writes only the fields that are set.
func (r *topicRepository) UpdateSettings(ctx context.Context, userID int64, id string, s models.TopicSettings) error {
	var (
		sets []string
		args []interface{}
	)
	if s.DisplayName != nil {
		sets = append(sets, "display_name = ?")
		args = append(args, *s.DisplayName)
	}
	if s.SummaryLength != nil {
		sets = append(sets, "summary_length = ?")
		args = append(args, string(*s.SummaryLength))
	}
	if s.CustomSummaryLength != nil {
		sets = append(sets, "custom_summary_length = ?")
		args = append(args, *s.CustomSummaryLength)
	}
	if s.TrackedSenders != nil {
		tracked, err := marshalColumn(*s.TrackedSenders)
		if err != nil {
			return err
		}
		sets = append(sets, "tracked_senders = ?")
		args = append(args, tracked)
	}
	if len(sets) == 0 {
		_, err := r.Get(ctx, userID, id)
		return err
	}

	args = append(args, id, userID)
	query := r.db.Rebind(`UPDATE topics SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND user_id = ?`)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update topic settings: %w", err)
	}
	return expectRow(res)
}

// Delete removes the topic and its profile links, then renumbers the
// remaining topics 0..n-1 keeping their relative order.
func (r *topicRepository) Delete(ctx context.Context, userID int64, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM topics WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}
	if err := expectRow(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM profile_topics WHERE topic_id = ?`), id); err != nil {
		return fmt.Errorf("delete topic links: %w", err)
	}

	var remaining []string
	if err := tx.SelectContext(ctx, &remaining, tx.Rebind(`SELECT id FROM topics WHERE user_id = ? ORDER BY sort_order, id`), userID); err != nil {
		return err
	}
	if err := writeOrder(ctx, tx, userID, remaining); err != nil {
		return err
	}
	return tx.Commit()
}

// Reorder assigns sort_order by position in orderedIDs. The ids must be
// exactly the user's topics.
func (r *topicRepository) Reorder(ctx context.Context, userID int64, orderedIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing []string
	if err := tx.SelectContext(ctx, &existing, tx.Rebind(`SELECT id FROM topics WHERE user_id = ?`), userID); err != nil {
		return err
	}
	if !sameSet(existing, orderedIDs) {
		return fmt.Errorf("reorder: ids do not match the user's topics: %w", ErrNotFound)
	}
	if err := writeOrder(ctx, tx, userID, orderedIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func writeOrder(ctx context.Context, tx *sqlx.Tx, userID int64, ids []string) error {
	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`UPDATE topics SET sort_order = ? WHERE id = ? AND user_id = ?`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, id := range ids {
		if _, err := stmt.ExecContext(ctx, i, id, userID); err != nil {
			return fmt.Errorf("set order of %s: %w", id, err)
		}
	}
	return nil
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		if seen[id] == 0 {
			return false
		}
		seen[id]--
	}
	return true
}

func toTopics(rows []topicRow) ([]*models.Topic, error) {
	topics := make([]*models.Topic, 0, len(rows))
	for i := range rows {
		t, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// JSON columns are stored as text so the same queries serve both drivers.
func marshalColumn(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return "[]", nil
	}
	return string(b), nil
}

func unmarshalColumn(s string, v interface{}) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}
