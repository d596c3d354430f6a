package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsOriginalUntouched(t *testing.T) {
	clone := Clone(ErrNotFound, "inspection not found")
	assert.Equal(t, "inspection not found", clone.Message)
	assert.Equal(t, ErrNotFound.Code, clone.Code)
	assert.Equal(t, "resource not found", ErrNotFound.Message)

	assert.Nil(t, Clone(nil, "x"))
	assert.Equal(t, ErrNotFound.Message, Clone(ErrNotFound, "").Message)
}

func TestInvalidStateDetail(t *testing.T) {
	err := InvalidState("inspection is closed")
	assert.Equal(t, ErrInvalidState.Code, err.Code)
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.Contains(t, err.Message, "inspection is closed")
	assert.Equal(t, ErrInvalidState.Message, InvalidState("").Message)
}

func TestHasCodeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("service: %w", Clone(ErrForbidden, "not your team"))
	assert.True(t, HasCode(wrapped, ErrForbidden.Code))
	assert.False(t, HasCode(wrapped, ErrNotFound.Code))
	assert.False(t, HasCode(sql.ErrNoRows, ErrNotFound.Code))
}

func TestFromErrorNormalises(t *testing.T) {
	assert.Nil(t, FromError(nil))

	typed := Clone(ErrConflict, "duplicate")
	assert.Same(t, typed, FromError(typed))

	plain := FromError(sql.ErrConnDone)
	require.NotNil(t, plain)
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.ErrorIs(t, plain, sql.ErrConnDone)
}

func TestErrorString(t *testing.T) {
	var nilErr *Error
	assert.Equal(t, "<nil>", nilErr.Error())
	assert.Nil(t, nilErr.Unwrap())

	err := Wrap(sql.ErrNoRows, ErrInternal.Code, ErrInternal.Status, "failed to load team")
	assert.Equal(t, "failed to load team: sql: no rows in result set", err.Error())
}
