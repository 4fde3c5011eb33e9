package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf_TaggedError(t *testing.T) {
	err := New(KindNotFound, "payment not found")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestKindOf_WrappedTaggedError(t *testing.T) {
	inner := New(KindConflict, "already terminal")
	outer := fmt.Errorf("confirm payment: %w", inner)
	assert.Equal(t, KindConflict, KindOf(outer))
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestIsKind(t *testing.T) {
	err := Wrap(KindGatewayAmbiguous, "verify order", errors.New("timeout"))
	assert.True(t, IsKind(err, KindGatewayAmbiguous))
	assert.False(t, IsKind(err, KindGatewayDeclined))
	assert.False(t, IsKind(nil, KindGatewayAmbiguous))
}

func TestErrorsIs_MatchesByKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(KindConflict, "double confirmation"))
	assert.True(t, errors.Is(err, New(KindConflict, "")))
	assert.False(t, errors.Is(err, New(KindNotFound, "")))
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindPublishFailure, "publish event", cause)

	require.ErrorContains(t, err, "publish event")
	assert.True(t, errors.Is(err, cause))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "gateway_ambiguous", KindGatewayAmbiguous.String())
	assert.Equal(t, "internal", KindInternal.String())
}
