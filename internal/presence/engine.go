// Package presence decides who is in the room: it registers participants,
// refreshes their last-seen time and evicts the ones that went quiet.
package presence

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"chatroom/internal/hashing"
	"chatroom/internal/models"
	"chatroom/internal/repository"
)

const (
	DefaultStaleAfter = 10 * time.Second
	lockStripes       = 64
)

// Observer receives presence outcomes. Reap failures are reported here
// instead of being returned to a caller.
type Observer interface {
	Joined(name string)
	Heartbeat(name string)
	Evicted(name string)
	ReapFailed(name string, err error)
	ReapFinished(evicted, failed int, took time.Duration)
}

type NopObserver struct{}

func (NopObserver) Joined(string) {}
func (NopObserver) Heartbeat(string) {}
func (NopObserver) Evicted(string) {}
func (NopObserver) ReapFailed(string, error) {}
func (NopObserver) ReapFinished(int, int, time.Duration) {}

type Option func(*Engine)

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithStaleAfter sets how long a participant may stay silent before eviction.
func WithStaleAfter(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.staleAfter = d
		}
	}
}

type Engine struct {
	participants repository.ParticipantRepo
	messages     repository.MessageRepo
	staleAfter   time.Duration
	locks        *hashing.Striped
	observer     Observer
}

func NewEngine(participants repository.ParticipantRepo, messages repository.MessageRepo, opts ...Option) *Engine {
	e := &Engine{
		participants: participants,
		messages:     messages,
		staleAfter:   DefaultStaleAfter,
		locks:        hashing.NewStriped(lockStripes),
		observer:     NopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) StaleAfter() time.Duration { return e.staleAfter }

// Join registers name and announces it to the room.
//
// The participant insert and the announcement are separate writes. When the
// announcement fails Join reports ErrStoreUnavailable but the participant
// stays registered.
func (e *Engine) Join(ctx context.Context, name string, now time.Time) (models.Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Participant{}, models.ErrInvalidName
	}

	unlock := e.locks.Lock(models.NameKey(name))
	defer unlock()

	p := models.Participant{Name: name, LastSeen: now}
	if err := e.participants.Insert(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return models.Participant{}, models.ErrNameTaken
		}
		return models.Participant{}, models.StoreError(err)
	}

	if _, err := e.messages.Append(ctx, models.NewStatus(name, models.JoinedText, now)); err != nil {
		log.Printf("[PRESENCE] %s registered but join announcement failed: %v", name, err)
		return models.Participant{}, models.StoreError(err)
	}

	log.Printf("[PRESENCE] %s joined the room", name)
	e.observer.Joined(name)
	return p, nil
}

// Heartbeat marks name as seen at now. It never writes a message.
func (e *Engine) Heartbeat(ctx context.Context, name string, now time.Time) error {
	unlock := e.locks.Lock(models.NameKey(name))
	defer unlock()

	if err := e.participants.UpdateLastSeen(ctx, name, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.ErrUnknownParticipant
		}
		return models.StoreError(err)
	}

	e.observer.Heartbeat(name)
	return nil
}

func (e *Engine) Participants(ctx context.Context) ([]models.Participant, error) {
	all, err := e.participants.ListAll(ctx)
	if err != nil {
		return nil, models.StoreError(err)
	}
	return all, nil
}

func (e *Engine) isStale(p models.Participant, now time.Time) bool {
	return now.Sub(p.LastSeen) > e.staleAfter
}

// ReapReport summarizes one reap cycle.
type ReapReport struct {
	Evicted []string
	Failed  map[string]error
}

// Reap evicts every participant silent for longer than the stale threshold
// and announces each departure. A failure for one participant is reported
// and does not stop the others.
func (e *Engine) Reap(ctx context.Context, now time.Time) (ReapReport, error) {
	start := time.Now()
	report := ReapReport{Failed: make(map[string]error)}

	all, err := e.participants.ListAll(ctx)
	if err != nil {
		log.Printf("[PRESENCE] Reap could not list participants: %v", err)
		return report, models.StoreError(err)
	}

	for _, p := range all {
		if !e.isStale(p, now) {
			continue
		}

		evicted, err := e.evict(ctx, p.Name, now)
		if err != nil {
			log.Printf("[PRESENCE] Failed to evict %s: %v", p.Name, err)
			report.Failed[p.Name] = err
			e.observer.ReapFailed(p.Name, err)
			continue
		}
		if evicted {
			report.Evicted = append(report.Evicted, p.Name)
			e.observer.Evicted(p.Name)
		}
	}

	e.observer.ReapFinished(len(report.Evicted), len(report.Failed), time.Since(start))
	return report, nil
}

// evict removes name if it is still stale once its lock is held, so a
// heartbeat that lands during the cycle keeps the participant.
func (e *Engine) evict(ctx context.Context, name string, now time.Time) (bool, error) {
	unlock := e.locks.Lock(models.NameKey(name))
	defer unlock()

	current, err := e.participants.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, models.StoreError(err)
	}
	if !e.isStale(current, now) {
		return false, nil
	}

	if err := e.participants.Delete(ctx, current.Name); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, models.StoreError(err)
	}

	if _, err := e.messages.Append(ctx, models.NewStatus(current.Name, models.LeftText, now)); err != nil {
		return true, models.StoreError(err)
	}

	log.Printf("[PRESENCE] Evicted %s (idle %s)", current.Name, now.Sub(current.LastSeen))
	return true, nil
}
