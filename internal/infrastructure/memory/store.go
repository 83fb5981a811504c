// Package memory хранилище в памяти процесса: режим STORAGE_DRIVER=memory и тесты.
// Транзакции сериализуются общим мьютексом и работают на копии состояния.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-portal/internal/changesync"
	"github.com/ignatzorin/proposal-portal/internal/domain/entity"
	"github.com/ignatzorin/proposal-portal/internal/domain/repository"
	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
)

type state struct {
	proposals map[uuid.UUID]*entity.Proposal
	clients   map[uuid.UUID]*entity.Client
	items     map[uuid.UUID][]entity.ProposalItem
	companies map[uuid.UUID]*entity.Company
	tokens    map[uuid.UUID]*entity.CapabilityToken
	comments  []*entity.ClientComment
	changeLog []*entity.ChangeLogEntry
}

func newState() *state {
	return &state{
		proposals: make(map[uuid.UUID]*entity.Proposal),
		clients:   make(map[uuid.UUID]*entity.Client),
		items:     make(map[uuid.UUID][]entity.ProposalItem),
		companies: make(map[uuid.UUID]*entity.Company),
		tokens:    make(map[uuid.UUID]*entity.CapabilityToken),
	}
}

// clone копирует изменяемые сущности. Комментарии и записи журнала неизменяемы, их делим.
func (s *state) clone() *state {
	cp := newState()
	for id, p := range s.proposals {
		cp.proposals[id] = p.Clone()
	}
	for id, c := range s.clients {
		cp.clients[id] = c
	}
	for id, items := range s.items {
		cp.items[id] = items
	}
	for id, c := range s.companies {
		cp.companies[id] = c
	}
	for id, t := range s.tokens {
		cp.tokens[id] = t.Clone()
	}
	cp.comments = append([]*entity.ClientComment(nil), s.comments...)
	cp.changeLog = append([]*entity.ChangeLogEntry(nil), s.changeLog...)
	return cp
}

// Store реализует все репозитории, UnitOfWork и changesync.Source.
type Store struct {
	mu     sync.Mutex
	state  *state
	events chan changesync.Event
}

func NewStore() *Store {
	return &Store{
		state:  newState(),
		events: make(chan changesync.Event, 256),
	}
}

// repos репозитории поверх состояния: tx != nil внутри транзакции, иначе берётся блокировка.
type repos struct {
	store *Store
	tx    *txState
}

type txState struct {
	st      *state
	touched map[uuid.UUID]uuid.UUID
}

func (r repos) with(fn func(st *state) error) error {
	if r.tx != nil {
		return fn(r.tx.st)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return fn(r.store.state)
}

// touch запоминает изменённое предложение, чтобы после фиксации отправить событие.
func (r repos) touch(p *entity.Proposal) {
	if r.tx != nil {
		r.tx.touched[p.ID] = p.OwnerID
		return
	}
	r.store.emit(changesync.Event{Type: changesync.EventUpdate, ProposalID: p.ID, OwnerID: p.OwnerID})
}

func (s *Store) root() repos {
	return repos{store: s}
}

func (s *Store) Proposals() repository.ProposalRepository { return proposalRepo{s.root()} }
func (s *Store) Tokens() repository.TokenRepository { return tokenRepo{s.root()} }
func (s *Store) Comments() repository.CommentRepository { return commentRepo{s.root()} }
func (s *Store) ChangeLog() repository.ChangeLogRepository { return changeLogRepo{s.root()} }
func (s *Store) Reads() repository.ProposalReadRepository { return readRepo{s.root()} }

type txRepos struct {
	r repos
}

func (t txRepos) Proposals() repository.ProposalRepository { return proposalRepo{t.r} }
func (t txRepos) Tokens() repository.TokenRepository { return tokenRepo{t.r} }
func (t txRepos) Comments() repository.CommentRepository { return commentRepo{t.r} }
func (t txRepos) ChangeLog() repository.ChangeLogRepository { return changeLogRepo{t.r} }

// Do выполняет fn на копии состояния и подменяет состояние только при успехе.
// Внутри fn нельзя обращаться к нетранзакционным репозиториям Store: это дедлок.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	tx := &txState{st: s.state.clone(), touched: make(map[uuid.UUID]uuid.UUID)}
	if err := fn(ctx, txRepos{r: repos{store: s, tx: tx}}); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "транзакция прервана")
	}
	s.state = tx.st
	s.mu.Unlock()

	for id, owner := range tx.touched {
		s.emit(changesync.Event{Type: changesync.EventUpdate, ProposalID: id, OwnerID: owner})
	}
	return nil
}

func (s *Store) emit(ev changesync.Event) {
	select {
	case s.events <- ev:
	default:
		// Никто не читает события: хранилище не должно блокировать запись.
	}
}

// Events реализует changesync.Source.
func (s *Store) Events() <-chan changesync.Event {
	return s.events
}

// States реализует changesync.Source: соединение в памяти не теряется.
func (s *Store) States() <-chan changesync.ConnState {
	return nil
}

func (s *Store) Close() error {
	return nil
}
