package entity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/proposal-portal/internal/domain/valueobject"
)

func newTestProposal(t *testing.T) *Proposal {
	t.Helper()
	p, err := NewProposal(uuid.New(), uuid.New(), "2024-001", "Site institucional", 1000, 0, 0, 15)
	require.NoError(t, err)
	return p
}

func TestProposal_SendComputesExpiry(t *testing.T) {
	p := newTestProposal(t)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, p.Send(now))
	assert.Equal(t, valueobject.ProposalStatusSent, p.Status)
	require.NotNil(t, p.ExpiryDate)
	assert.Equal(t, now.AddDate(0, 0, 15), *p.ExpiryDate)
	assert.Equal(t, now, *p.SentAt)

	assert.Error(t, p.Send(now), "повторная отправка должна быть запрещена")
}

func TestProposal_ContestOverwritesApproved(t *testing.T) {
	p := newTestProposal(t)
	now := time.Now()
	require.NoError(t, p.Send(now))
	require.NoError(t, p.Approve(now))

	require.NoError(t, p.Contest(now))
	assert.Equal(t, valueobject.ProposalStatusContested, p.Status)
}

func TestProposal_ContestRejectsDraft(t *testing.T) {
	p := newTestProposal(t)
	require.Equal(t, valueobject.ProposalStatusDraft, p.Status)

	assert.Error(t, p.Contest(time.Now()))
	assert.Equal(t, valueobject.ProposalStatusDraft, p.Status)
}

func TestProposal_ResolveSetsFlag(t *testing.T) {
	p := newTestProposal(t)
	p.Status = valueobject.ProposalStatusContested

	now := time.Now()
	require.NoError(t, p.Resolve(now))
	assert.Equal(t, valueobject.ProposalStatusSent, p.Status)
	assert.True(t, p.UpdatedAfterComment)
	require.NotNil(t, p.ExpiryDate)
	assert.Equal(t, now.AddDate(0, 0, p.ValidityDays), *p.ExpiryDate)

	p.Status = valueobject.ProposalStatusApproved
	assert.Error(t, p.Resolve(now))
}

func TestDiffProposals_OnlyChangedFields(t *testing.T) {
	before := newTestProposal(t)
	after := before.Clone()

	assert.Empty(t, DiffProposals(before, after))

	totals, err := valueobject.NewTotals(after.Subtotal, 10, after.Tax)
	require.NoError(t, err)
	after.SetTotals(totals)

	changes := DiffProposals(before, after)
	require.Len(t, changes, 2)
	assert.Equal(t, "discount", changes[0].Field)
	assert.Equal(t, "0.00", *changes[0].OldValue)
	assert.Equal(t, "10.00", *changes[0].NewValue)
	assert.Equal(t, "total", changes[1].Field)
	assert.Equal(t, "900.00", *changes[1].NewValue)
}

func TestCapabilityToken_Expiry(t *testing.T) {
	now := time.Now()
	tok := &CapabilityToken{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, tok.IsExpired(now))
	assert.True(t, tok.IsReusable(now))
	assert.True(t, tok.IsExpired(now.Add(time.Minute)))

	used := now
	tok.UsedAt = &used
	assert.False(t, tok.IsReusable(now))
}
