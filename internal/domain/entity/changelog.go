package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChangeType тип изменения в журнале.
type ChangeType string

const (
	ChangeTypeCreate ChangeType = "create"
	ChangeTypeUpdate ChangeType = "update"
	ChangeTypeDelete ChangeType = "delete"
)

// Зарезервированные значения changed_by для действий не владельца.
const (
	ChangedByClient = "client"
	ChangedBySystem = "system"
)

// FieldClientComments поле журнала, под которым фиксируются комментарии клиента.
const FieldClientComments = "observacoes_cliente"

// ChangeLogEntry неизменяемая запись журнала изменений предложения.
type ChangeLogEntry struct {
	ID             uuid.UUID
	ProposalID     uuid.UUID
	FieldName      string
	OldValue       *string
	NewValue       *string
	ChangeType     ChangeType
	ChangedBy      string
	ClientApproval *bool
	ClientIP       *string
	UserAgent      *string
	CreatedAt      time.Time
}

// ClientComment комментарий клиента, оставленный через портал.
type ClientComment struct {
	ID          uuid.UUID
	ProposalID  uuid.UUID
	TokenID     uuid.UUID
	ClientName  string
	ClientEmail string
	Comment     string
	ClientIP    *string
	UserAgent   *string
	CreatedAt   time.Time
}
