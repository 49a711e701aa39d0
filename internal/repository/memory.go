package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"chatroom/internal/models"

	"github.com/google/uuid"
)

// MemoryParticipantRepo keeps participants in process memory. It backs tests
// and single-instance deployments without a database.
type MemoryParticipantRepo struct {
	mu   sync.RWMutex
	data map[string]models.Participant
}

func NewMemoryParticipantRepo() *MemoryParticipantRepo {
	return &MemoryParticipantRepo{
		data: make(map[string]models.Participant),
	}
}

func (s *MemoryParticipantRepo) FindByName(_ context.Context, name string) (models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[models.NameKey(name)]
	if !ok {
		return models.Participant{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryParticipantRepo) Insert(_ context.Context, p models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.NameKey(p.Name)
	if _, ok := s.data[key]; ok {
		return ErrDuplicate
	}
	s.data[key] = p
	return nil
}

func (s *MemoryParticipantRepo) UpdateLastSeen(_ context.Context, name string, seen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.NameKey(name)
	p, ok := s.data[key]
	if !ok {
		return ErrNotFound
	}
	if seen.After(p.LastSeen) {
		p.LastSeen = seen
		s.data[key] = p
	}
	return nil
}

func (s *MemoryParticipantRepo) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.NameKey(name)
	if _, ok := s.data[key]; !ok {
		return ErrNotFound
	}
	delete(s.data, key)
	return nil
}

func (s *MemoryParticipantRepo) ListAll(_ context.Context) ([]models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Participant, 0, len(s.data))
	for _, p := range s.data {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return models.NameKey(out[i].Name) < models.NameKey(out[j].Name)
	})
	return out, nil
}

// MemoryMessageRepo is an append-ordered in-memory message log.
type MemoryMessageRepo struct {
	mu       sync.RWMutex
	messages []models.Message
	nextSeq  int64
}

func NewMemoryMessageRepo() *MemoryMessageRepo {
	return &MemoryMessageRepo{}
}

func (s *MemoryMessageRepo) Append(_ context.Context, m models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSeq++
	m.ID = uuid.New()
	m.Seq = s.nextSeq
	s.messages = append(s.messages, m)
	return m, nil
}

func (s *MemoryMessageRepo) indexOf(id uuid.UUID) int {
	return slices.IndexFunc(s.messages, func(m models.Message) bool { return m.ID == id })
}

func (s *MemoryMessageRepo) FindByID(_ context.Context, id uuid.UUID) (models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.Message{}, ErrNotFound
	}
	return s.messages[i], nil
}

func (s *MemoryMessageRepo) Update(_ context.Context, id uuid.UUID, fields MessageUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	m := &s.messages[i]
	m.To = fields.To
	m.Text = fields.Text
	m.Kind = fields.Kind
	m.Time = fields.Time
	return nil
}

func (s *MemoryMessageRepo) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	s.messages = slices.Delete(s.messages, i, i+1)
	return nil
}

func (s *MemoryMessageRepo) ListAll(_ context.Context) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.messages), nil
}
