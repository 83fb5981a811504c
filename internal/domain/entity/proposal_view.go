package entity

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-portal/internal/domain/valueobject"
)

// Client внешний получатель предложения. CRUD клиентов живёт вне ядра.
type Client struct {
	ID       uuid.UUID
	OwnerID  uuid.UUID
	Name     string
	Email    *string
	Phone    *string
	Document *string
}

// ProposalItem позиция предложения (только чтение).
type ProposalItem struct {
	ID          uuid.UUID
	ProposalID  uuid.UUID
	Description string
	Quantity    float64
	UnitPrice   float64
	Total       float64
	Position    int
}

// Company снимок профиля компании владельца для портала.
type Company struct {
	OwnerID  uuid.UUID
	Name     string
	Document *string
	Email    *string
	Phone    *string
	Address  *string
	LogoURL  *string
}

// ProposalView денормализованная запись предложения вместе с клиентом.
type ProposalView struct {
	Proposal *Proposal
	Client   *Client
}

// FieldChange изменение одного поля предложения.
type FieldChange struct {
	Field    string
	OldValue *string
	NewValue *string
}

// AuditFields текстовое представление полей, которые попадают в журнал изменений.
func (p *Proposal) AuditFields() []FieldChange {
	return []FieldChange{
		{Field: "title", NewValue: strPtr(p.Title)},
		{Field: "notes", NewValue: cloneString(p.Notes)},
		{Field: "status", NewValue: strPtr(p.Status.String())},
		{Field: "subtotal", NewValue: strPtr(valueobject.FormatMoney(p.Subtotal))},
		{Field: "discount", NewValue: strPtr(valueobject.FormatMoney(p.Discount))},
		{Field: "tax", NewValue: strPtr(valueobject.FormatMoney(p.Tax))},
		{Field: "total", NewValue: strPtr(valueobject.FormatMoney(p.Total))},
		{Field: "validity_days", NewValue: strPtr(strconv.Itoa(p.ValidityDays))},
		{Field: "expiry_date", NewValue: timePtrString(p.ExpiryDate)},
		{Field: "updated_after_comment", NewValue: strPtr(strconv.FormatBool(p.UpdatedAfterComment))},
	}
}

// DiffProposals возвращает только те поля, значение которых действительно изменилось.
func DiffProposals(before, after *Proposal) []FieldChange {
	oldFields := before.AuditFields()
	newFields := after.AuditFields()

	var changes []FieldChange
	for i := range newFields {
		if equalStringPtr(oldFields[i].NewValue, newFields[i].NewValue) {
			continue
		}
		changes = append(changes, FieldChange{
			Field:    newFields[i].Field,
			OldValue: oldFields[i].NewValue,
			NewValue: newFields[i].NewValue,
		})
	}
	return changes
}

func strPtr(s string) *string {
	return &s
}

func timePtrString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format("2006-01-02")
	return &s
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
