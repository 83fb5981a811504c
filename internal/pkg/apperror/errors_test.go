package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_MapsHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrCodeValidation:        http.StatusBadRequest,
		ErrCodeUnauthorized:      http.StatusUnauthorized,
		ErrCodeTokenWrongPurpose: http.StatusForbidden,
		ErrCodeTokenNotFound:     http.StatusNotFound,
		ErrCodeProposalNotFound:  http.StatusNotFound,
		ErrCodeTokenAlreadyUsed:  http.StatusConflict,
		ErrCodeInvalidTransition: http.StatusConflict,
		ErrCodeTokenExpired:      http.StatusGone,
		ErrCodeTooManyRequests:   http.StatusTooManyRequests,
		ErrCodeInternal:          http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, New(code, "x").HTTPStatus, code)
	}
}

func TestIs_ComparesByCode(t *testing.T) {
	wrapped := fmt.Errorf("approve: %w", New(ErrCodeTokenExpired, "другое сообщение"))

	assert.True(t, errors.Is(wrapped, ErrTokenExpired))
	assert.False(t, errors.Is(wrapped, ErrTokenAlreadyUsed))
	assert.False(t, errors.Is(errors.New("plain"), ErrTokenExpired))
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, ErrCodeDatabaseError, "ошибка базы")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeConflict, CodeOf(fmt.Errorf("wrap: %w", ErrVersionConflict)))
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("plain")))
	assert.True(t, IsNotFound(ErrProposalNotFound))
	assert.True(t, IsConflict(ErrVersionConflict))
	assert.True(t, IsForbidden(ErrForbidden))
	assert.False(t, IsValidation(ErrForbidden))
}
