package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const ownerRole = "owner"

var ErrInvalidAccessToken = errors.New("токен доступа невалиден")

// TokenManager выпускает и проверяет JWT владельцев предложений.
// Клиенты портала JWT не получают: у них только capability-токены.
type TokenManager struct {
	accessSecret []byte
	accessTTL    time.Duration
	now          func() time.Time
}

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(accessSecret string, accessTTL time.Duration) *TokenManager {
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	return &TokenManager{
		accessSecret: []byte(accessSecret),
		accessTTL:    accessTTL,
		now:          time.Now,
	}
}

// GenerateAccess выпускает access токен владельца.
func (m *TokenManager) GenerateAccess(ownerID uuid.UUID) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.accessTTL)

	claims := jwt.MapClaims{
		"sub":  ownerID.String(),
		"role": ownerRole,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseAccess извлекает ID владельца из access токена.
func (m *TokenManager) ParseAccess(token string) (uuid.UUID, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return m.accessSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return uuid.Nil, ErrInvalidAccessToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrInvalidAccessToken
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, ErrInvalidAccessToken
	}
	if role, _ := claims["role"].(string); role != ownerRole {
		return uuid.Nil, ErrInvalidAccessToken
	}

	ownerID, err := uuid.Parse(sub)
	if err != nil || ownerID == uuid.Nil {
		return uuid.Nil, ErrInvalidAccessToken
	}

	return ownerID, nil
}
