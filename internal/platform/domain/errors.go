package domain

import "errors"

// Kind classifica erros de negócio para mapeamento na borda (HTTP, logs)
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindForbidden
)

// Error é um erro de negócio com classificação. Os sentinels abaixo são comparados com errors.Is.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func validation(msg string) *Error { return &Error{Kind: KindValidation, Msg: msg} }
func conflict(msg string) *Error   { return &Error{Kind: KindConflict, Msg: msg} }

var (
	// validação: rejeitadas antes de qualquer escrita
	ErrInsufficientFunds        = validation("insufficient funds")
	ErrBelowMinimum             = validation("amount below platform minimum")
	ErrExceedsTierLimit         = validation("amount exceeds VIP tier withdrawal limit")
	ErrWithdrawalCountExhausted = validation("withdrawal count exhausted for the current period")
	ErrInvalidAmount            = validation("amount must be positive")
	ErrAmountPrecision          = validation("amount has more than 8 decimal places")
	ErrMissingField             = validation("missing required field")
	ErrInvalidDirection         = validation("direction must be a_favor or en_contra")
	ErrUnknownAsset             = validation("unknown asset")
	ErrCancelWindowClosed       = validation("bet can no longer be cancelled")
	ErrSelfReferral             = validation("cannot refer yourself")
	ErrInvalidSchedule          = validation("invalid schedule")
	ErrUnknownReferralCode      = validation("unknown referral code")
	ErrNoAvailableCommission    = validation("no available commission")

	// conflito: no-op reportado, nunca aplicado em dobro
	ErrAlreadyResolved    = conflict("request already resolved")
	ErrAlreadyProcessed   = conflict("bet already processed")
	ErrBetNotOpen         = conflict("bet is not open")
	ErrReferralAlreadySet = conflict("referral already set")
	ErrAccountExists      = conflict("account already exists")

	ErrNotFound  = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrForbidden = &Error{Kind: KindForbidden, Msg: "forbidden"}

	// não é falha: liquidação sem apostas abertas
	ErrNothingToProcess = errors.New("nothing to process")
)

// KindOf extrai a classificação de um erro (possivelmente embrulhado)
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsConflict(err error) bool   { return KindOf(err) == KindConflict }
