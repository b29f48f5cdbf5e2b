package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	sentinel := New(KindConflict, "version conflict")

	testCases := []struct {
		name     string
		err      error
		expected Kind
	}{
		{name: "nil", err: nil, expected: ""},
		{name: "plain error", err: errors.New("boom"), expected: KindInternal},
		{name: "sentinel", err: sentinel, expected: KindConflict},
		{name: "wrapped sentinel", err: fmt.Errorf("finish match: %w", sentinel), expected: KindConflict},
		{name: "wrap", err: Wrap(KindDependency, "propagate", errors.New("no next match")), expected: KindDependency},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, KindOf(tc.err))
		})
	}
}

func TestWrapKeepsChain(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindDependency, "write pair", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "write pair: disk full", err.Error())
	assert.Nil(t, Wrap(KindDependency, "noop", nil))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, KindAuthorization.HTTPStatus())
	assert.Equal(t, http.StatusConflict, KindConflict.HTTPStatus())
	assert.Equal(t, http.StatusConflict, KindStateViolation.HTTPStatus())
	assert.Equal(t, http.StatusNotFound, KindNotFound.HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, KindValidation.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, KindInternal.HTTPStatus())
}
