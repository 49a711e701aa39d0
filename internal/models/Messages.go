package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type MessageKind string

const (
	KindBroadcast MessageKind = "broadcast"
	KindPrivate   MessageKind = "private"
	KindStatus    MessageKind = "status"
)

// Everyone is the recipient of broadcast and status messages.
const Everyone = "everyone"

// TimeLayout is the wall-clock format stamped on every message.
const TimeLayout = "15:04:05"

const (
	JoinedText = "joined the room"
	LeftText   = "left the room"
)

type Message struct {
	ID   uuid.UUID   `json:"id"`
	From string      `json:"from"`
	To   string      `json:"to"`
	Text string      `json:"text"`
	Kind MessageKind `json:"type"`
	Time string      `json:"time"`

	Seq int64 `json:"-"`
}

// Draft is the caller-supplied part of a message before it is stamped and stored.
type Draft struct {
	From string
	To   string
	Text string
	Kind MessageKind
}

func (k MessageKind) Valid() bool {
	switch k {
	case KindBroadcast, KindPrivate, KindStatus:
		return true
	}
	return false
}

// Postable reports whether participants may create this kind directly.
// Status messages are reserved for presence announcements.
func (k MessageKind) Postable() bool {
	return k == KindBroadcast || k == KindPrivate
}

func IsEveryone(to string) bool {
	return strings.EqualFold(strings.TrimSpace(to), Everyone)
}

func StampTime(now time.Time) string {
	return now.Format(TimeLayout)
}

// NewMessage checks the kind-specific shape of d and returns an unsaved
// message stamped at now.
func NewMessage(d Draft, now time.Time) (Message, error) {
	var fields []string

	if strings.TrimSpace(d.From) == "" {
		fields = append(fields, "from")
	}
	if strings.TrimSpace(d.Text) == "" {
		fields = append(fields, "text")
	}

	to := strings.TrimSpace(d.To)
	switch {
	case to == "":
		fields = append(fields, "to")
	case d.Kind == KindPrivate && IsEveryone(to):
		fields = append(fields, "to")
	case (d.Kind == KindBroadcast || d.Kind == KindStatus) && !IsEveryone(to):
		fields = append(fields, "to")
	}

	if !d.Kind.Valid() {
		fields = append(fields, "type")
	}

	if len(fields) > 0 {
		return Message{}, &InvalidMessageError{Fields: fields}
	}

	if IsEveryone(to) {
		to = Everyone
	}

	return Message{
		From: strings.TrimSpace(d.From),
		To:   to,
		Text: d.Text,
		Kind: d.Kind,
		Time: StampTime(now),
	}, nil
}

// NewStatus builds the announcement appended when name joins or leaves.
func NewStatus(name, text string, now time.Time) Message {
	return Message{
		From: name,
		To:   Everyone,
		Text: text,
		Kind: KindStatus,
		Time: StampTime(now),
	}
}

// VisibleTo reports whether requester may read m.
func (m Message) VisibleTo(requester string) bool {
	return IsEveryone(m.To) || SameName(m.To, requester) || SameName(m.From, requester)
}

// FilterVisible keeps the messages requester may read, preserving order.
// A positive limit keeps only the most recent limit of them.
func FilterVisible(msgs []Message, requester string, limit int) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.VisibleTo(requester) {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
