package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/domain/valueobject"
	"github.com/ignatzorin/proposal-portal/internal/infrastructure/memory"
	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-portal/internal/usecase/audit"
)

func newLog() (*audit.Log, *memory.Store, *time.Time) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	log := audit.NewLog(store.ChangeLog(), func() time.Time { return now })
	return log, store, &now
}

func TestAppend_FillsDefaults(t *testing.T) {
	log, _, now := newLog()
	entry := &entity.ChangeLogEntry{ProposalID: uuid.New(), FieldName: "title", ChangedBy: "system"}

	require.NoError(t, log.Append(context.Background(), entry))
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.Equal(t, entity.ChangeTypeUpdate, entry.ChangeType)
	assert.Equal(t, *now, entry.CreatedAt)
}

func TestAppend_RejectsIncompleteEntry(t *testing.T) {
	log, _, _ := newLog()

	err := log.Append(context.Background(), &entity.ChangeLogEntry{FieldName: "title", ChangedBy: "system"})
	assert.True(t, apperror.IsValidation(err))

	err = log.Append(context.Background(), &entity.ChangeLogEntry{ProposalID: uuid.New(), FieldName: "title"})
	assert.True(t, apperror.IsValidation(err))
}

func TestAppendStatusChange(t *testing.T) {
	log, _, _ := newLog()
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, log.AppendStatusChange(ctx, id, valueobject.ProposalStatusSent, valueobject.ProposalStatusSent, audit.SystemActor()))
	entries, err := log.ListFor(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, entries, "без смены статуса запись не пишется")

	approved := true
	actor := audit.ClientActor(entity.ClientInfo{IP: "10.0.0.9"}, &approved)
	require.NoError(t, log.AppendStatusChange(ctx, id, valueobject.ProposalStatusSent, valueobject.ProposalStatusApproved, actor))

	entries, err = log.ListFor(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sent", *entries[0].OldValue)
	assert.Equal(t, "approved", *entries[0].NewValue)
	assert.Equal(t, entity.ChangedByClient, entries[0].ChangedBy)
	assert.True(t, *entries[0].ClientApproval)
	assert.Equal(t, "10.0.0.9", *entries[0].ClientIP)
	assert.Nil(t, entries[0].UserAgent)
}

func TestAppendClientComment(t *testing.T) {
	log, _, _ := newLog()
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, log.AppendClientComment(ctx, id, "price too high", entity.ClientInfo{UserAgent: "curl/8"}))

	entries, err := log.ListFor(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.FieldClientComments, entries[0].FieldName)
	assert.Nil(t, entries[0].OldValue)
	assert.Equal(t, "price too high", *entries[0].NewValue)
	require.NotNil(t, entries[0].ClientApproval)
	assert.False(t, *entries[0].ClientApproval)
}

func TestAppendDiff_OneEntryPerChangedField(t *testing.T) {
	log, _, now := newLog()
	ctx := context.Background()
	owner := uuid.New()

	before, err := entity.NewProposal(owner, uuid.New(), "PRP-3", "Consultoria", 1000, 0, 0, 30)
	require.NoError(t, err)
	after := before.Clone()
	totals, err := valueobject.NewTotals(1000, 10, 0)
	require.NoError(t, err)
	after.SetTotals(totals)

	written, err := log.AppendDiff(ctx, before.ID, entity.DiffProposals(before, after), audit.OwnerActor(owner))
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	entries, err := log.ListFor(ctx, before.ID)
	require.NoError(t, err)
	fields := map[string]string{}
	for _, e := range entries {
		fields[e.FieldName] = *e.NewValue
		assert.Equal(t, owner.String(), e.ChangedBy)
		assert.Equal(t, *now, e.CreatedAt)
	}
	assert.Equal(t, map[string]string{"discount": "10.00", "total": "900.00"}, fields)
}

func TestListFor_NewestFirstAndAppendOnly(t *testing.T) {
	log, _, now := newLog()
	ctx := context.Background()
	id := uuid.New()

	first := &entity.ChangeLogEntry{ProposalID: id, FieldName: "title", ChangedBy: "system"}
	require.NoError(t, log.Append(ctx, first))
	*now = now.Add(time.Minute)
	second := &entity.ChangeLogEntry{ProposalID: id, FieldName: "notes", ChangedBy: "system"}
	require.NoError(t, log.Append(ctx, second))

	entries, err := log.ListFor(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, first.ID, entries[1].ID)
}
