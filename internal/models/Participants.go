package models

import (
	"strings"
	"time"
)

type Participant struct {
	Name     string    `json:"name"`
	LastSeen time.Time `json:"lastSeen"`
}

// NameKey is the case-folded identity used for every name comparison.
// The stored Name keeps the casing given at join.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func SameName(a, b string) bool {
	return NameKey(a) == NameKey(b)
}
