package repository

import "context"

// Tx набор репозиториев, работающих в одной транзакции.
type Tx interface {
	Proposals() ProposalRepository
	Tokens() TokenRepository
	Comments() CommentRepository
	ChangeLog() ChangeLogRepository
}

// UnitOfWork выполняет fn атомарно: либо фиксируются все записи, либо ни одной.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
