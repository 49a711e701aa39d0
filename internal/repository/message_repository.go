package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"

	"chatroom/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageUpdate carries the mutable fields of a stored message.
type MessageUpdate struct {
	To   string
	Text string
	Kind models.MessageKind
	Time string
}

type MessageRepo interface {
	// Append assigns ID and Seq and returns the stored message.
	Append(ctx context.Context, m models.Message) (models.Message, error)
	FindByID(ctx context.Context, id uuid.UUID) (models.Message, error)
	Update(ctx context.Context, id uuid.UUID, fields MessageUpdate) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListAll returns every message in append order.
	ListAll(ctx context.Context) ([]models.Message, error)
}

// VisibleLister is implemented by stores that can apply the visibility rule
// themselves. Results are in append order; a positive limit keeps the most
// recent limit visible messages.
type VisibleLister interface {
	ListVisible(ctx context.Context, requester string, limit int) ([]models.Message, error)
}

type PostgresMessagesRepo struct {
	pool *pgxpool.Pool
}

func NewMessagesRepo(pool *pgxpool.Pool) *PostgresMessagesRepo {
	return &PostgresMessagesRepo{
		pool: pool,
	}
}

const messageColumns = `id, seq, from_name, to_name, text, kind, time_text`

func scanMessage(row pgx.Row) (models.Message, error) {
	var m models.Message
	err := row.Scan(
		&m.ID,
		&m.Seq,
		&m.From,
		&m.To,
		&m.Text,
		&m.Kind,
		&m.Time,
	)
	return m, err
}

func (r *PostgresMessagesRepo) Append(ctx context.Context, m models.Message) (models.Message, error) {
	const query = `
        INSERT INTO messages (id, from_name, from_key, to_name, to_key, text, kind, time_text)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING seq`

	m.ID = uuid.New()
	err := r.pool.QueryRow(ctx, query,
		m.ID,
		m.From,
		models.NameKey(m.From),
		m.To,
		models.NameKey(m.To),
		m.Text,
		m.Kind,
		m.Time,
	).Scan(&m.Seq)

	if err != nil {
		log.Printf("[REPO ERROR] Failed to save message %s from %s: %v", m.ID, m.From, err)
		return models.Message{}, err
	}

	return m, nil
}

func (r *PostgresMessagesRepo) FindByID(ctx context.Context, id uuid.UUID) (models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	m, err := scanMessage(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Message{}, ErrNotFound
		}
		return models.Message{}, fmt.Errorf("failed to find message by ID: %w", err)
	}

	return m, nil
}

func (r *PostgresMessagesRepo) Update(ctx context.Context, id uuid.UUID, fields MessageUpdate) error {
	const query = `
		UPDATE messages
		SET to_name = $2, to_key = $3, text = $4, kind = $5, time_text = $6
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, fields.To, models.NameKey(fields.To), fields.Text, fields.Kind, fields.Time)
	if err != nil {
		log.Printf("[REPO ERROR] Failed to update message %s: %v", id, err)
		return fmt.Errorf("database update failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PostgresMessagesRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM messages WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PostgresMessagesRepo) ListAll(ctx context.Context) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages ORDER BY seq`
	return r.fetch(ctx, query)
}

func (r *PostgresMessagesRepo) ListVisible(ctx context.Context, requester string, limit int) ([]models.Message, error) {
	query := `
        SELECT ` + messageColumns + `
        FROM messages
        WHERE to_key = $1
           OR to_key = $2
           OR from_key = $2
        ORDER BY seq DESC`

	// to_key and from_key hold models.NameKey values.
	args := []any{models.NameKey(models.Everyone), models.NameKey(requester)}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	messages, err := r.fetch(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	slices.Reverse(messages)
	return messages, nil
}

func (r *PostgresMessagesRepo) fetch(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		log.Printf("[REPO ERROR] Fetch failed: %v", err)
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			log.Printf("[REPO ERROR] Scan failed: %v", err)
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}
