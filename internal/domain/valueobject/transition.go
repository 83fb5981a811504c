package valueobject

import (
	"fmt"

	"github.com/ignatzorin/proposal-portal/internal/pkg/apperror"
)

// Transition именованный переход жизненного цикла предложения.
// Guard решает, допустим ли переход из текущего статуса.
type Transition struct {
	Name  string
	To    ProposalStatus
	Guard func(from ProposalStatus) bool
}

var (
	// TransitionSend владелец отправляет черновик клиенту.
	TransitionSend = Transition{
		Name:  "send",
		To:    ProposalStatusSent,
		Guard: fromOnly(ProposalStatusDraft),
	}

	// TransitionApprove клиент одобряет отправленное предложение по одноразовой ссылке.
	TransitionApprove = Transition{
		Name:  "approve",
		To:    ProposalStatusApproved,
		Guard: fromOnly(ProposalStatusSent),
	}

	// TransitionContest клиент оставил комментарий. Разрешён из любого статуса, который
	// клиент видит в портале, включая approved. Черновик клиенту недоступен.
	TransitionContest = Transition{
		Name:  "contest",
		To:    ProposalStatusContested,
		Guard: contestGuard,
	}

	// TransitionResolve владелец исправил оспоренное предложение и отправил заново.
	TransitionResolve = Transition{
		Name:  "resolve",
		To:    ProposalStatusSent,
		Guard: fromOnly(ProposalStatusContested),
	}

	// TransitionExpire фоновый процесс помечает просроченное отправленное предложение.
	TransitionExpire = Transition{
		Name:  "expire",
		To:    ProposalStatusExpired,
		Guard: fromOnly(ProposalStatusSent),
	}
)

// Transitions все переходы, которыми управляет ядро.
var Transitions = []Transition{
	TransitionSend,
	TransitionApprove,
	TransitionContest,
	TransitionResolve,
	TransitionExpire,
}

func contestGuard(from ProposalStatus) bool {
	return from.IsClientVisible()
}

func fromOnly(allowed ...ProposalStatus) func(ProposalStatus) bool {
	return func(from ProposalStatus) bool {
		for _, s := range allowed {
			if s == from {
				return true
			}
		}
		return false
	}
}

// Allowed проверяет guard перехода.
func (t Transition) Allowed(from ProposalStatus) bool {
	return t.Guard != nil && t.Guard(from)
}

// Apply возвращает новый статус или ошибку INVALID_TRANSITION.
func (t Transition) Apply(from ProposalStatus) (ProposalStatus, error) {
	if !t.Allowed(from) {
		return from, apperror.New(
			apperror.ErrCodeInvalidTransition,
			fmt.Sprintf("переход %q невозможен из статуса %q", t.Name, from),
		)
	}
	return t.To, nil
}

// CanTransitionTo сообщает, существует ли именованный переход from -> to.
func (s ProposalStatus) CanTransitionTo(to ProposalStatus) bool {
	for _, t := range Transitions {
		if t.To == to && t.Allowed(s) {
			return true
		}
	}
	return false
}
