package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/domain/valueobject"
)

// TokenRepository хранилище capability-токенов. Писать в токены можно только через него.
type TokenRepository interface {
	Create(ctx context.Context, token *entity.CapabilityToken) error
	FindByToken(ctx context.Context, secret string) (*entity.CapabilityToken, error)
	// FindReusable возвращает неиспользованный и не истёкший токен указанного назначения или nil.
	FindReusable(ctx context.Context, proposalID uuid.UUID, purpose valueobject.TokenPurpose, now time.Time) (*entity.CapabilityToken, error)
	ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]*entity.CapabilityToken, error)
	// RecordAccess увеличивает access_count на 1, ставит last_accessed_at и expires_at.
	RecordAccess(ctx context.Context, id uuid.UUID, accessedAt, expiresAt time.Time) error
	// ConsumeApproval условная запись used_at WHERE used_at IS NULL. false, если токен уже потрачен.
	ConsumeApproval(ctx context.Context, secret string, now time.Time, info entity.ClientInfo) (bool, error)
	SetSeenUpdateByProposal(ctx context.Context, proposalID uuid.UUID, seen bool) (int64, error)
	SetSeenUpdateByToken(ctx context.Context, secret string, seen bool) error
}
