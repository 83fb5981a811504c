package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrCodeConflict        ErrorCode = "CONFLICT"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError   ErrorCode = "DATABASE_ERROR"
	ErrCodeTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"

	ErrCodeProposalNotFound   ErrorCode = "PROPOSAL_NOT_FOUND"
	ErrCodeInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	ErrCodeTokenNotFound      ErrorCode = "TOKEN_NOT_FOUND"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
	ErrCodeTokenAlreadyUsed   ErrorCode = "TOKEN_ALREADY_USED"
	ErrCodeTokenWrongPurpose  ErrorCode = "TOKEN_WRONG_PURPOSE"
	ErrCodeNotificationFailed ErrorCode = "NOTIFICATION_FAILED"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал и для обёрнутых копий.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound, ErrCodeProposalNotFound, ErrCodeTokenNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden, ErrCodeTokenWrongPurpose:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodeInvalidTransition, ErrCodeTokenAlreadyUsed:
		return http.StatusConflict
	case ErrCodeTokenExpired:
		return http.StatusGone
	case ErrCodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или INTERNAL_ERROR для неизвестных ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func IsNotFound(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeNotFound || code == ErrCodeProposalNotFound
}

func IsForbidden(err error) bool {
	return CodeOf(err) == ErrCodeForbidden
}

func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

func IsConflict(err error) bool {
	return CodeOf(err) == ErrCodeConflict
}

var (
	ErrProposalNotFound = New(ErrCodeProposalNotFound, "предложение не найдено")
	ErrClientNotFound   = New(ErrCodeNotFound, "клиент не найден")
	ErrCompanyNotFound  = New(ErrCodeNotFound, "профиль компании не найден")
	ErrUnauthorized     = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden        = New(ErrCodeForbidden, "недостаточно прав")
	ErrVersionConflict  = New(ErrCodeConflict, "предложение было изменено другим запросом, обновите данные")

	ErrTokenNotFound     = New(ErrCodeTokenNotFound, "ссылка недействительна")
	ErrTokenExpired      = New(ErrCodeTokenExpired, "срок действия ссылки истёк")
	ErrTokenAlreadyUsed  = New(ErrCodeTokenAlreadyUsed, "ссылка уже была использована")
	ErrTokenWrongPurpose = New(ErrCodeTokenWrongPurpose, "ссылка не предназначена для этого действия")
)
