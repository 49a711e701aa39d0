package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"chatroom/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ParticipantRepo is the registry of participants currently in the room.
// Names are matched case-insensitively everywhere.
type ParticipantRepo interface {
	FindByName(ctx context.Context, name string) (models.Participant, error)
	// Insert fails with ErrDuplicate when the name is already registered.
	Insert(ctx context.Context, p models.Participant) error
	// UpdateLastSeen never moves LastSeen backwards.
	UpdateLastSeen(ctx context.Context, name string, seen time.Time) error
	Delete(ctx context.Context, name string) error
	ListAll(ctx context.Context) ([]models.Participant, error)
}

type PostgresParticipantRepo struct {
	pool *pgxpool.Pool
}

func NewParticipantRepo(pool *pgxpool.Pool) *PostgresParticipantRepo {
	return &PostgresParticipantRepo{
		pool: pool,
	}
}

func (r *PostgresParticipantRepo) FindByName(ctx context.Context, name string) (models.Participant, error) {
	const query = `
		SELECT name, last_seen
		FROM participants
		WHERE name_key = $1`

	var p models.Participant
	err := r.pool.QueryRow(ctx, query, models.NameKey(name)).Scan(&p.Name, &p.LastSeen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Participant{}, ErrNotFound
		}
		return models.Participant{}, fmt.Errorf("failed to find participant: %w", err)
	}

	return p, nil
}

func (r *PostgresParticipantRepo) Insert(ctx context.Context, p models.Participant) error {
	const query = `
		INSERT INTO participants (name_key, name, last_seen)
		VALUES ($1, $2, $3)
		ON CONFLICT (name_key) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query, models.NameKey(p.Name), p.Name, p.LastSeen)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		log.Printf("[REPO ERROR] Failed to insert participant %s: %v", p.Name, err)
		return fmt.Errorf("failed to insert participant: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}

	return nil
}

func (r *PostgresParticipantRepo) UpdateLastSeen(ctx context.Context, name string, seen time.Time) error {
	const query = `
		UPDATE participants
		SET last_seen = GREATEST(last_seen, $2)
		WHERE name_key = $1`

	tag, err := r.pool.Exec(ctx, query, models.NameKey(name), seen)
	if err != nil {
		log.Printf("[REPO ERROR] Failed to update last_seen for %s: %v", name, err)
		return fmt.Errorf("database update failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PostgresParticipantRepo) Delete(ctx context.Context, name string) error {
	const query = `DELETE FROM participants WHERE name_key = $1`

	tag, err := r.pool.Exec(ctx, query, models.NameKey(name))
	if err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PostgresParticipantRepo) ListAll(ctx context.Context) ([]models.Participant, error) {
	const query = `
		SELECT name, last_seen
		FROM participants
		ORDER BY name_key`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		log.Printf("[REPO ERROR] Listing participants failed: %v", err)
		return nil, err
	}
	defer rows.Close()

	participants := make([]models.Participant, 0)
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.Name, &p.LastSeen); err != nil {
			log.Printf("[REPO ERROR] Scan failed: %v", err)
			return nil, err
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}
