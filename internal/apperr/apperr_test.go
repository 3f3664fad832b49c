package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMatchesByKindOnly(t *testing.T) {
	err := Wrap(NotFound, "graphstore.GetNode", "node missing", errors.New("sql: no rows"))

	require.True(t, errors.Is(err, New(NotFound, "", "")))
	require.False(t, errors.Is(err, New(Conflict, "", "")))
}

func TestKindOfUnwrapsWrappedErrors(t *testing.T) {
	cause := New(ValidationFailure, "domain.Memory.Validate", "tags must not be empty")
	wrapped := fmt.Errorf("writeback.Commit: %w", cause)

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	require.Equal(t, ValidationFailure, kind)
}

func TestIsKind(t *testing.T) {
	err := New(StalePrecondition, "writeback.Commit", "version mismatch")
	require.True(t, IsKind(err, StalePrecondition))
	require.False(t, IsKind(err, Fatal))
	require.False(t, IsKind(errors.New("plain"), Fatal))
}
