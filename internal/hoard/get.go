package hoard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dyluth/warren/internal/trace"
	"github.com/google/uuid"
)

// MinShortIDLength is the minimum length of a short ID prefix.
const MinShortIDLength = 6

// GetObservation resolves id (full UUID or short prefix) and writes the
// observation as pretty-printed JSON.
func GetObservation(ctx context.Context, store trace.Store, id string, w io.Writer) error {
	fullID, err := ResolveID(ctx, store, id)
	if err != nil {
		return err
	}

	o, err := store.Get(ctx, fullID)
	if err != nil {
		if trace.IsNotFound(err) {
			return &NotFoundError{ID: fullID}
		}
		return fmt.Errorf("failed to fetch observation: %w", err)
	}

	if err := FormatSingleJSON(w, o); err != nil {
		return fmt.Errorf("failed to format observation: %w", err)
	}
	return nil
}

// ResolveID expands a short ID prefix to the full UUID of the one
// observation it matches. A full UUID is returned as-is once it is known to
// exist.
func ResolveID(ctx context.Context, store trace.Store, id string) (string, error) {
	if _, err := uuid.Parse(id); err == nil && strings.Count(id, "-") == 4 {
		if _, err := store.Get(ctx, id); err != nil {
			if trace.IsNotFound(err) {
				return "", &NotFoundError{ID: id}
			}
			return "", fmt.Errorf("failed to verify observation existence: %w", err)
		}
		return id, nil
	}

	if len(id) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(id))
	}

	matches, err := store.Scan(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to search for observation: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ID: id}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: id, Matches: matches}
	}
}

// NotFoundError means no observation matched the ID.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("observation with ID '%s' not found", e.ID)
}

// AmbiguousError means a short ID matched several observations.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d observations", e.ShortID, len(e.Matches))
}

// Details lists up to 10 matches, then "...and N more".
func (e *AmbiguousError) Details() string {
	var b strings.Builder
	shown := e.Matches
	if len(shown) > 10 {
		shown = shown[:10]
	}
	for _, m := range shown {
		fmt.Fprintf(&b, "  %s\n", m)
	}
	if len(e.Matches) > 10 {
		fmt.Fprintf(&b, "  ...and %d more\n", len(e.Matches)-10)
	}
	return b.String()
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsAmbiguous reports whether err is an AmbiguousError.
func IsAmbiguous(err error) bool {
	var ae *AmbiguousError
	return errors.As(err, &ae)
}
