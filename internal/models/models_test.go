package models

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func TestNameKey(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"ana", "ANA", true},
		{"  Ana ", "ana", true},
		{"ana", "anna", false},
		{"", "  ", true},
		{"ÉLODIE", "élodie", true},
		{"Ça", "ça", true},
	}
	for _, tt := range tests {
		if got := SameName(tt.a, tt.b); got != tt.same {
			t.Errorf("SameName(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.same)
		}
	}
}

func TestNewMessage(t *testing.T) {
	now := time.Date(2025, 1, 15, 9, 5, 7, 0, time.UTC)

	tests := []struct {
		name   string
		draft  Draft
		fields []string
		to     string
	}{
		{name: "broadcast", draft: Draft{From: "ana", To: "everyone", Text: "hi", Kind: KindBroadcast}, to: Everyone},
		{name: "broadcast recipient normalized", draft: Draft{From: "ana", To: " EVERYONE ", Text: "hi", Kind: KindBroadcast}, to: Everyone},
		{name: "private", draft: Draft{From: "ana", To: "bob", Text: "hi", Kind: KindPrivate}, to: "bob"},
		{name: "status", draft: Draft{From: "ana", To: "everyone", Text: JoinedText, Kind: KindStatus}, to: Everyone},
		{name: "private to everyone", draft: Draft{From: "ana", To: "everyone", Text: "hi", Kind: KindPrivate}, fields: []string{"to"}},
		{name: "broadcast to bob", draft: Draft{From: "ana", To: "bob", Text: "hi", Kind: KindBroadcast}, fields: []string{"to"}},
		{name: "blank text", draft: Draft{From: "ana", To: "bob", Text: " \t", Kind: KindPrivate}, fields: []string{"text"}},
		{name: "bad kind", draft: Draft{From: "ana", To: "bob", Text: "hi", Kind: "private_message"}, fields: []string{"type"}},
		{name: "empty", draft: Draft{}, fields: []string{"from", "text", "to", "type"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMessage(tt.draft, now)
			if tt.fields != nil {
				var invalid *InvalidMessageError
				if !errors.As(err, &invalid) {
					t.Fatalf("expected *InvalidMessageError, got %v", err)
				}
				if !errors.Is(err, ErrInvalidMessage) {
					t.Error("expected error to match ErrInvalidMessage")
				}
				if !slices.Equal(invalid.Fields, tt.fields) {
					t.Errorf("expected fields %v, got %v", tt.fields, invalid.Fields)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m.To != tt.to {
				t.Errorf("expected to %q, got %q", tt.to, m.To)
			}
			if m.Time != "09:05:07" {
				t.Errorf("expected time 09:05:07, got %q", m.Time)
			}
		})
	}
}

func TestVisibleTo(t *testing.T) {
	tests := []struct {
		name      string
		msg       Message
		requester string
		want      bool
	}{
		{"broadcast to anyone", Message{From: "ana", To: Everyone, Kind: KindBroadcast}, "zed", true},
		{"status to anyone", Message{From: "ana", To: Everyone, Kind: KindStatus}, "zed", true},
		{"private to recipient", Message{From: "ana", To: "Bob", Kind: KindPrivate}, "bob", true},
		{"private to sender", Message{From: "Ana", To: "bob", Kind: KindPrivate}, "ANA", true},
		{"private to outsider", Message{From: "ana", To: "bob", Kind: KindPrivate}, "carla", false},
		{"requester need not be a participant", Message{From: "ana", To: "ghost", Kind: KindPrivate}, "ghost", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.VisibleTo(tt.requester); got != tt.want {
				t.Errorf("VisibleTo(%q) = %v, want %v", tt.requester, got, tt.want)
			}
		})
	}
}

func TestFilterVisible(t *testing.T) {
	msgs := []Message{
		{Seq: 1, From: "ana", To: "bob", Text: "a", Kind: KindPrivate},
		{Seq: 2, From: "ana", To: "carla", Text: "b", Kind: KindPrivate},
		{Seq: 3, From: "carla", To: Everyone, Text: "c", Kind: KindBroadcast},
		{Seq: 4, From: "ana", To: "carla", Text: "d", Kind: KindPrivate},
		{Seq: 5, From: "bob", To: "ana", Text: "e", Kind: KindPrivate},
	}

	tests := []struct {
		limit int
		want  []int64
	}{
		{0, []int64{1, 3, 5}},
		{-1, []int64{1, 3, 5}},
		{1, []int64{5}},
		{2, []int64{3, 5}},
		{10, []int64{1, 3, 5}},
	}
	for _, tt := range tests {
		got := FilterVisible(msgs, "bob", tt.limit)
		seqs := make([]int64, 0, len(got))
		for _, m := range got {
			seqs = append(seqs, m.Seq)
		}
		if !slices.Equal(seqs, tt.want) {
			t.Errorf("limit %d: expected %v, got %v", tt.limit, tt.want, seqs)
		}
	}

	if got := FilterVisible(nil, "bob", 0); got == nil || len(got) != 0 {
		t.Errorf("expected an empty non-nil slice, got %#v", got)
	}
}
