package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-portal/internal/domain/valueobject"
)

// CapabilityToken даёт неаутентифицированному клиенту доступ к одному предложению.
type CapabilityToken struct {
	ID               uuid.UUID
	ProposalID       uuid.UUID
	Purpose          valueobject.TokenPurpose
	Token            string
	ExpiresAt        time.Time
	UsedAt           *time.Time
	LastAccessedAt   *time.Time
	AccessCount      int
	ClientIP         *string
	ClientUserAgent  *string
	ClientSeenUpdate bool
	CreatedAt        time.Time
}

func (t *CapabilityToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *CapabilityToken) IsUsed() bool {
	return t.UsedAt != nil
}

// IsReusable сообщает, можно ли выдать этот токен повторно вместо нового.
func (t *CapabilityToken) IsReusable(now time.Time) bool {
	return !t.IsUsed() && !t.IsExpired(now)
}

func (t *CapabilityToken) Clone() *CapabilityToken {
	cp := *t
	cp.UsedAt = cloneTime(t.UsedAt)
	cp.LastAccessedAt = cloneTime(t.LastAccessedAt)
	cp.ClientIP = cloneString(t.ClientIP)
	cp.ClientUserAgent = cloneString(t.ClientUserAgent)
	return &cp
}

// ClientInfo сведения о запросе клиента, которые сохраняются для аудита.
type ClientInfo struct {
	IP        string
	UserAgent string
}

func (c ClientInfo) IPPtr() *string {
	if c.IP == "" {
		return nil
	}
	v := c.IP
	return &v
}

func (c ClientInfo) UserAgentPtr() *string {
	if c.UserAgent == "" {
		return nil
	}
	v := c.UserAgent
	return &v
}
