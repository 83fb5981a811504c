package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-portal/internal/domain/valueobject"
	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
)

// Proposal коммерческое предложение владельца аккаунта.
type Proposal struct {
	ID                  uuid.UUID
	OwnerID             uuid.UUID
	ClientID            uuid.UUID
	Number              string
	Title               string
	Notes               *string
	Status              valueobject.ProposalStatus
	Subtotal            float64
	Discount            float64
	Tax                 float64
	Total               float64
	ValidityDays        int
	ExpiryDate          *time.Time
	UpdatedAfterComment bool
	Version             int
	CreatedAt           time.Time
	UpdatedAt           time.Time
	SentAt              *time.Time
	ApprovedAt          *time.Time
}

func NewProposal(ownerID, clientID uuid.UUID, number, title string, subtotal, discount, tax float64, validityDays int) (*Proposal, error) {
	if title == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "название предложения обязательно")
	}
	if validityDays <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "срок действия должен быть положительным")
	}
	totals, err := valueobject.NewTotals(subtotal, discount, tax)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	p := &Proposal{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		ClientID:     clientID,
		Number:       number,
		Title:        title,
		Status:       valueobject.ProposalStatusDraft,
		ValidityDays: validityDays,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	p.SetTotals(totals)
	return p, nil
}

// Totals возвращает финансовые поля предложения.
func (p *Proposal) Totals() valueobject.Totals {
	return valueobject.Totals{Subtotal: p.Subtotal, Discount: p.Discount, Tax: p.Tax, Total: p.Total}
}

// SetTotals записывает пересчитанные финансовые поля.
func (p *Proposal) SetTotals(t valueobject.Totals) {
	p.Subtotal = t.Subtotal
	p.Discount = t.Discount
	p.Tax = t.Tax
	p.Total = t.Total
}

func (p *Proposal) transition(t valueobject.Transition, now time.Time) error {
	next, err := t.Apply(p.Status)
	if err != nil {
		return err
	}
	p.Status = next
	p.UpdatedAt = now
	return nil
}

// Send переводит черновик в sent и вычисляет дату истечения.
func (p *Proposal) Send(now time.Time) error {
	if err := p.transition(valueobject.TransitionSend, now); err != nil {
		return err
	}
	p.SentAt = &now
	p.refreshExpiry(now)
	return nil
}

// Approve фиксирует одобрение клиентом.
func (p *Proposal) Approve(now time.Time) error {
	if err := p.transition(valueobject.TransitionApprove, now); err != nil {
		return err
	}
	p.ApprovedAt = &now
	return nil
}

// Contest безусловно переводит предложение в contested.
func (p *Proposal) Contest(now time.Time) error {
	return p.transition(valueobject.TransitionContest, now)
}

// Resolve возвращает оспоренное предложение в sent и поднимает флаг пересмотра.
// Повторная отправка заново отсчитывает срок действия.
func (p *Proposal) Resolve(now time.Time) error {
	if err := p.transition(valueobject.TransitionResolve, now); err != nil {
		return err
	}
	p.UpdatedAfterComment = true
	p.SentAt = &now
	p.refreshExpiry(now)
	return nil
}

// Expire помечает просроченное предложение.
func (p *Proposal) Expire(now time.Time) error {
	return p.transition(valueobject.TransitionExpire, now)
}

// SetValidityDays меняет срок действия и пересчитывает дату истечения для отправленных предложений.
func (p *Proposal) SetValidityDays(days int, now time.Time) error {
	if days <= 0 {
		return apperror.New(apperror.ErrCodeValidation, "срок действия должен быть положительным")
	}
	p.ValidityDays = days
	if p.SentAt != nil {
		p.refreshExpiry(*p.SentAt)
	}
	return nil
}

func (p *Proposal) refreshExpiry(from time.Time) {
	expiry := from.AddDate(0, 0, p.ValidityDays)
	p.ExpiryDate = &expiry
}

// IsPastExpiry сообщает, истёк ли срок действия предложения.
func (p *Proposal) IsPastExpiry(now time.Time) bool {
	return p.ExpiryDate != nil && now.After(*p.ExpiryDate)
}

func (p *Proposal) IsOwnedBy(userID uuid.UUID) bool {
	return p.OwnerID == userID
}

// Clone возвращает независимую копию.
func (p *Proposal) Clone() *Proposal {
	cp := *p
	cp.Notes = cloneString(p.Notes)
	cp.ExpiryDate = cloneTime(p.ExpiryDate)
	cp.SentAt = cloneTime(p.SentAt)
	cp.ApprovedAt = cloneTime(p.ApprovedAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
