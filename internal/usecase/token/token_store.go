// Package token выдача, проверка, продление и одноразовое использование capability-токенов.
// Записывать в токены разрешено только через Store.
package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/domain/repository"
	"github.com/ignatzorin/proposal-portal/internal/domain/valueobject"
	"github.com/ignatzorin/proposal-portal/internal/logger"
	"github.com/ignatzorin/proposal-portal/internal/metrics"
	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
)

const (
	DefaultPortalTTL   = 30 * 24 * time.Hour
	DefaultApprovalTTL = 72 * time.Hour

	// secretBytes 256 бит энтропии.
	secretBytes = 32
)

type Config struct {
	PortalTTL   time.Duration
	ApprovalTTL time.Duration
}

func (c Config) ttl(purpose valueobject.TokenPurpose) time.Duration {
	if purpose == valueobject.TokenPurposePortal {
		if c.PortalTTL > 0 {
			return c.PortalTTL
		}
		return DefaultPortalTTL
	}
	if c.ApprovalTTL > 0 {
		return c.ApprovalTTL
	}
	return DefaultApprovalTTL
}

type Option func(*Store)

// WithClock подменяет часы (тесты).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithSecretGenerator подменяет генератор секретов (тесты).
func WithSecretGenerator(gen func() (string, error)) Option {
	return func(s *Store) {
		s.newSecret = gen
	}
}

type Store struct {
	tokens    repository.TokenRepository
	config    Config
	now       func() time.Time
	newSecret func() (string, error)
}

func NewStore(tokens repository.TokenRepository, config Config, opts ...Option) *Store {
	s := &Store{
		tokens:    tokens,
		config:    config,
		now:       time.Now,
		newSecret: NewSecret,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// In возвращает копию Store, работающую через репозиторий транзакции.
func (s *Store) In(tokens repository.TokenRepository) *Store {
	cp := *s
	cp.tokens = tokens
	return &cp
}

func (s *Store) Now() time.Time {
	return s.now().UTC()
}

// NewSecret непрозрачный случайный секрет в base64url без паддинга.
func NewSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token: не удалось получить случайные байты: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Issue выдаёт токен. Если у предложения уже есть живой неиспользованный токен
// того же назначения, возвращается он.
func (s *Store) Issue(ctx context.Context, proposalID uuid.UUID, purpose valueobject.TokenPurpose) (*entity.CapabilityToken, error) {
	if !purpose.IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "некорректное назначение токена")
	}
	now := s.Now()

	existing, err := s.tokens.FindReusable(ctx, proposalID, purpose, now)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	secret, err := s.newSecret()
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось создать токен")
	}
	token := &entity.CapabilityToken{
		ID:               uuid.New(),
		ProposalID:       proposalID,
		Purpose:          purpose,
		Token:            secret,
		ExpiresAt:        now.Add(s.config.ttl(purpose)),
		ClientSeenUpdate: true,
		CreatedAt:        now,
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"proposal_id":   proposalID,
		"token_purpose": purpose,
		"expires_at":    token.ExpiresAt,
	}).Info("Выдан токен доступа")
	return token, nil
}

// Validate проверяет токен любого назначения. Одобряющий токен должен быть не использован
// и не истёк; истёкший портальный продлевается на PortalTTL от текущего момента.
// Каждая успешная проверка увеличивает access_count на 1.
func (s *Store) Validate(ctx context.Context, secret string) (*entity.CapabilityToken, error) {
	return s.validate(ctx, secret, "")
}

// ValidateFor как Validate, но требует конкретное назначение.
// Токен чужого назначения не считается обращением.
func (s *Store) ValidateFor(ctx context.Context, secret string, purpose valueobject.TokenPurpose) (*entity.CapabilityToken, error) {
	return s.validate(ctx, secret, purpose)
}

func (s *Store) validate(ctx context.Context, secret string, want valueobject.TokenPurpose) (*entity.CapabilityToken, error) {
	label := want.String()
	token, err := s.check(ctx, secret, want)
	if token != nil {
		label = token.Purpose.String()
	}
	if label == "" {
		label = "unknown"
	}
	metrics.TokenValidations.WithLabelValues(label, metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	return token, nil
}

func (s *Store) check(ctx context.Context, secret string, want valueobject.TokenPurpose) (*entity.CapabilityToken, error) {
	if secret == "" {
		return nil, apperror.ErrTokenNotFound
	}
	token, err := s.tokens.FindByToken(ctx, secret)
	if err != nil {
		return nil, err
	}
	if want != "" && token.Purpose != want {
		return nil, apperror.ErrTokenWrongPurpose
	}
	now := s.Now()

	switch token.Purpose {
	case valueobject.TokenPurposeApproval:
		if token.IsUsed() {
			return token, apperror.ErrTokenAlreadyUsed
		}
		if token.IsExpired(now) {
			return token, apperror.ErrTokenExpired
		}
	case valueobject.TokenPurposePortal:
		if token.IsExpired(now) {
			renewed := now.Add(s.config.ttl(valueobject.TokenPurposePortal))
			logger.Log.WithFields(logrus.Fields{
				"proposal_id": token.ProposalID,
				"expired_at":  token.ExpiresAt,
				"renewed_to":  renewed,
			}).Info("Портальный токен продлён при обращении")
			metrics.TokenRenewals.Inc()
			token.ExpiresAt = renewed
		}
	default:
		return token, apperror.New(apperror.ErrCodeInternal, "неизвестное назначение токена")
	}

	if err := s.tokens.RecordAccess(ctx, token.ID, now, token.ExpiresAt); err != nil {
		return nil, err
	}
	token.AccessCount++
	token.LastAccessedAt = &now
	return token, nil
}

// Consume одноразово помечает одобряющий токен использованным одной условной записью.
// Если токен уже потрачен параллельным запросом, возвращает ErrTokenAlreadyUsed.
func (s *Store) Consume(ctx context.Context, secret string, info entity.ClientInfo) error {
	now := s.Now()
	ok, err := s.tokens.ConsumeApproval(ctx, secret, now, info)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	// Условная запись не сработала: уточняем причину для ответа клиенту.
	token, err := s.tokens.FindByToken(ctx, secret)
	switch {
	case err != nil:
		return err
	case token.Purpose != valueobject.TokenPurposeApproval:
		return apperror.ErrTokenWrongPurpose
	case token.IsExpired(now) && !token.IsUsed():
		return apperror.ErrTokenExpired
	default:
		return apperror.ErrTokenAlreadyUsed
	}
}

// MarkUpdateUnseen включает баннер «предложение обновлено» на портальных токенах предложения.
func (s *Store) MarkUpdateUnseen(ctx context.Context, proposalID uuid.UUID) error {
	affected, err := s.tokens.SetSeenUpdateByProposal(ctx, proposalID, false)
	if err != nil {
		return err
	}
	if affected == 0 {
		logger.Log.WithField("proposal_id", proposalID).Debug("У предложения нет портальных токенов для пометки")
	}
	return nil
}

// MarkUpdateSeen клиент увидел обновление.
func (s *Store) MarkUpdateSeen(ctx context.Context, secret string) error {
	if secret == "" {
		return apperror.ErrTokenNotFound
	}
	return s.tokens.SetSeenUpdateByToken(ctx, secret, true)
}

func (s *Store) ListForProposal(ctx context.Context, proposalID uuid.UUID) ([]*entity.CapabilityToken, error) {
	return s.tokens.ListByProposal(ctx, proposalID)
}
