package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/coursewatch/coursewatch/internal/types"
)

// Source produces the set of closed course sections for the current cycle.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (types.ClosedSet, error)
}

// Kind classifies a fetch failure.
type Kind string

const (
	// KindNetwork covers connection, timeout and HTTP status failures.
	KindNetwork Kind = "network"
	// KindParse covers snapshots that do not have the expected tabular shape.
	KindParse Kind = "parse"
)

// FetchError is returned by every Source. Both kinds are transient.
type FetchError struct {
	Kind Kind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func networkErr(format string, args ...any) error {
	return &FetchError{Kind: KindNetwork, Err: fmt.Errorf(format, args...)}
}

func parseErr(format string, args ...any) error {
	return &FetchError{Kind: KindParse, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the failure kind of err, or "" when err is not a FetchError.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsNetwork reports whether err is a network fetch failure.
func IsNetwork(err error) bool { return KindOf(err) == KindNetwork }

// IsParse reports whether err is a parse fetch failure.
func IsParse(err error) bool { return KindOf(err) == KindParse }
