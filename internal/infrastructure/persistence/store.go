package persistence

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/proposal-portal/internal/domain/repository"
	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
)

// Store собирает репозитории поверх одного пула и реализует UnitOfWork.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Proposals() repository.ProposalRepository {
	return NewProposalRepositoryAdapter(s.db)
}

func (s *Store) Tokens() repository.TokenRepository {
	return NewTokenRepositoryAdapter(s.db)
}

func (s *Store) Comments() repository.CommentRepository {
	return NewCommentRepositoryAdapter(s.db)
}

func (s *Store) ChangeLog() repository.ChangeLogRepository {
	return NewChangeLogRepositoryAdapter(s.db)
}

func (s *Store) Reads() repository.ProposalReadRepository {
	return NewProposalReadAdapter(s.db)
}

// Do выполняет fn в одной транзакции.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(ctx, txRepositories{tx: tx})
	})
}

type txRepositories struct {
	tx *sqlx.Tx
}

func (t txRepositories) Proposals() repository.ProposalRepository {
	return NewProposalRepositoryAdapter(t.tx)
}

func (t txRepositories) Tokens() repository.TokenRepository {
	return NewTokenRepositoryAdapter(t.tx)
}

func (t txRepositories) Comments() repository.CommentRepository {
	return NewCommentRepositoryAdapter(t.tx)
}

func (t txRepositories) ChangeLog() repository.ChangeLogRepository {
	return NewChangeLogRepositoryAdapter(t.tx)
}

// WithTransaction выполняет функцию внутри транзакции. Ошибка fn возвращается как есть,
// сбои begin и commit приходят как DATABASE_ERROR.
func WithTransaction(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось начать транзакцию")
	}

	defer func() {
		if p := recover(); p != nil {
			// При панике откатываем транзакцию
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось зафиксировать транзакцию")
	}

	return nil
}
