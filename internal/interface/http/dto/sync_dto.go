package dto

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-portal/internal/changesync"
)

// SyncMessage сообщение WebSocket: "type" содержит имя события, "data" полезную нагрузку.
type SyncMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type SyncDeletedData struct {
	ID uuid.UUID `json:"id"`
}

type SyncSnapshotData struct {
	Reason    string             `json:"reason"`
	Proposals []ProposalResponse `json:"proposals"`
}

type SyncStateData struct {
	Reason string `json:"reason"`
}

type StatusChangedData struct {
	ID     uuid.UUID `json:"id"`
	Number string    `json:"number"`
	Title  string    `json:"title"`
	From   string    `json:"from"`
	To     string    `json:"to"`
}

// SyncClientCommand команда клиента по WebSocket. Поддерживается только "resync".
type SyncClientCommand struct {
	Type string `json:"type"`
}

func ToSyncMessage(msg changesync.Message) SyncMessage {
	out := SyncMessage{Type: string(msg.Type)}
	switch msg.Type {
	case changesync.MessageInserted, changesync.MessageUpdated:
		out.Data = ToProposalResponse(msg.Record)
	case changesync.MessageDeleted:
		out.Data = SyncDeletedData{ID: msg.ProposalID}
	case changesync.MessageStatusChanged:
		out.Data = StatusChangedData{
			ID:     msg.Notice.ProposalID,
			Number: msg.Notice.Number,
			Title:  msg.Notice.Title,
			From:   msg.Notice.From.String(),
			To:     msg.Notice.To.String(),
		}
	case changesync.MessageSnapshot:
		out.Data = SyncSnapshotData{Reason: msg.Reason, Proposals: ToProposalResponses(msg.Records)}
	default:
		out.Data = SyncStateData{Reason: msg.Reason}
	}
	return out
}
