package types

import (
	"fmt"
	"strings"
)

// ResourceKey identifies one tracked course section.
type ResourceKey struct {
	Code  string `yaml:"code" json:"code"`
	Group string `yaml:"group" json:"group"`
	Kind  string `yaml:"kind" json:"kind"`
}

// String renders the key the way alerts show it, e.g. "SSH3201 - 3 (C)".
func (k ResourceKey) String() string {
	return fmt.Sprintf("%s - %s (%s)", k.Code, k.Group, k.Kind)
}

// TrimSpace returns the key with surrounding whitespace removed from every
// field. Snapshot cells are compared in this form.
func (k ResourceKey) TrimSpace() ResourceKey {
	return ResourceKey{
		Code:  strings.TrimSpace(k.Code),
		Group: strings.TrimSpace(k.Group),
		Kind:  strings.TrimSpace(k.Kind),
	}
}

// ClosedSet holds the keys listed as closed in one snapshot. It is rebuilt
// from scratch every poll cycle.
type ClosedSet map[ResourceKey]struct{}

// NewClosedSet builds a set from the given keys.
func NewClosedSet(keys ...ResourceKey) ClosedSet {
	s := make(ClosedSet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Add marks key as closed.
func (s ClosedSet) Add(key ResourceKey) {
	s[key] = struct{}{}
}

// Contains reports whether key is listed as closed.
func (s ClosedSet) Contains(key ResourceKey) bool {
	_, ok := s[key]
	return ok
}

// Status is the derived availability of a tracked key.
type Status int

const (
	StatusUnknown Status = iota
	StatusClosed
	StatusOpen
)

func (s Status) String() string {
	switch s {
	case StatusClosed:
		return "closed"
	case StatusOpen:
		return "open"
	default:
		return "unknown"
	}
}
