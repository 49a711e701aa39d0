package chat

import (
	"context"
	"errors"
	"log"
	"time"

	"chatroom/internal/models"
	"chatroom/internal/repository"

	"github.com/google/uuid"
)

// Observer is told about every message written through the engine.
type Observer interface {
	Posted(kind models.MessageKind)
	Edited()
	Deleted()
}

type nopObserver struct{}

func (nopObserver) Posted(models.MessageKind) {}
func (nopObserver) Edited() {}
func (nopObserver) Deleted() {}

// Body is the replaceable part of a message on edit.
type Body struct {
	To   string
	Text string
	Kind models.MessageKind
}

type Engine struct {
	participants repository.ParticipantRepo
	messages     repository.MessageRepo
	observer     Observer
}

func NewEngine(participants repository.ParticipantRepo, messages repository.MessageRepo) *Engine {
	return &Engine{
		participants: participants,
		messages:     messages,
		observer:     nopObserver{},
	}
}

func (e *Engine) SetObserver(o Observer) {
	if o != nil {
		e.observer = o
	}
}

// validate applies the message shape rules for participant-authored
// messages; status messages are reserved for presence announcements.
func validate(d models.Draft, now time.Time) (models.Message, error) {
	m, err := models.NewMessage(d, now)
	if d.Kind.Postable() {
		return m, err
	}

	var invalid *models.InvalidMessageError
	if errors.As(err, &invalid) {
		if d.Kind.Valid() {
			invalid.Fields = append(invalid.Fields, "type")
		}
		return models.Message{}, invalid
	}
	return models.Message{}, &models.InvalidMessageError{Fields: []string{"type"}}
}

func (e *Engine) Post(ctx context.Context, d models.Draft, now time.Time) (models.Message, error) {
	m, err := validate(d, now)
	if err != nil {
		return models.Message{}, err
	}

	sender, err := e.participants.FindByName(ctx, m.From)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Message{}, models.ErrUnknownSender
		}
		return models.Message{}, models.StoreError(err)
	}
	m.From = sender.Name

	stored, err := e.messages.Append(ctx, m)
	if err != nil {
		log.Printf("[CHAT] Failed to store %s message from %s: %v", m.Kind, m.From, err)
		return models.Message{}, models.StoreError(err)
	}

	e.observer.Posted(stored.Kind)
	return stored, nil
}

// List returns the messages requester may read in chronological order.
// A positive limit keeps the most recent limit of them.
func (e *Engine) List(ctx context.Context, requester string, limit int) ([]models.Message, error) {
	if limit < 0 {
		limit = 0
	}

	if lister, ok := e.messages.(repository.VisibleLister); ok {
		msgs, err := lister.ListVisible(ctx, requester, limit)
		if err != nil {
			return nil, models.StoreError(err)
		}
		return msgs, nil
	}

	all, err := e.messages.ListAll(ctx)
	if err != nil {
		return nil, models.StoreError(err)
	}
	return models.FilterVisible(all, requester, limit), nil
}

func (e *Engine) owned(ctx context.Context, id uuid.UUID, requester string) (models.Message, error) {
	m, err := e.messages.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Message{}, models.ErrNotFound
		}
		return models.Message{}, models.StoreError(err)
	}
	if !models.SameName(m.From, requester) {
		return models.Message{}, models.ErrForbidden
	}
	return m, nil
}

// Edit replaces recipient, text and kind of a message owned by requester
// and re-stamps its time. Sender, id and position never change.
func (e *Engine) Edit(ctx context.Context, id uuid.UUID, requester string, body Body, now time.Time) error {
	if _, err := e.owned(ctx, id, requester); err != nil {
		return err
	}

	m, err := validate(models.Draft{From: requester, To: body.To, Text: body.Text, Kind: body.Kind}, now)
	if err != nil {
		return err
	}

	err = e.messages.Update(ctx, id, repository.MessageUpdate{To: m.To, Text: m.Text, Kind: m.Kind, Time: m.Time})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.ErrNotFound
		}
		return models.StoreError(err)
	}

	e.observer.Edited()
	return nil
}

func (e *Engine) Delete(ctx context.Context, id uuid.UUID, requester string) error {
	if _, err := e.owned(ctx, id, requester); err != nil {
		return err
	}

	if err := e.messages.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.ErrNotFound
		}
		return models.StoreError(err)
	}

	e.observer.Deleted()
	return nil
}
