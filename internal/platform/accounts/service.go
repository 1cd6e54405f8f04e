package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/crypto-bet-platform/internal/platform/domain"
	"github.com/radieske/crypto-bet-platform/internal/platform/store"
	"github.com/radieske/crypto-bet-platform/internal/platform/vip"
)

const referralCodeLen = 8

// Service mantém o cadastro das contas do ledger: código de indicação, indicador e nível VIP
type Service struct {
	store   store.Store
	log     *zap.Logger
	now     func() time.Time
	newCode func() string
}

func NewService(st store.Store, log *zap.Logger) *Service {
	return &Service{store: st, log: log, now: time.Now, newCode: generateCode}
}

// WithClock troca o relógio (testes)
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func generateCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:referralCodeLen]
}

// Register cria a conta do usuário autenticado. referralCode opcional vincula o indicador.
func (s *Service) Register(ctx context.Context, userID, referralCode string) (*domain.Account, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId", domain.ErrMissingField)
	}
	referralCode = strings.ToUpper(strings.TrimSpace(referralCode))

	var acc *domain.Account
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetAccount(ctx, userID); err == nil {
			return domain.ErrAccountExists
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		if referralCode != "" {
			if _, err := tx.GetAccountByReferralCode(ctx, referralCode); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return domain.ErrUnknownReferralCode
				}
				return err
			}
		}

		code, err := s.uniqueCode(ctx, tx)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		acc = &domain.Account{
			ID:            userID,
			Balance:       decimal.Zero,
			TotalDeposits: decimal.Zero,
			ReferralCode:  code,
			ReferredBy:    referralCode,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return tx.InsertAccount(ctx, acc)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("account registered", zap.String("userId", userID), zap.Bool("referred", referralCode != ""))
	return acc, nil
}

func (s *Service) uniqueCode(ctx context.Context, tx store.Tx) (string, error) {
	for i := 0; i < 5; i++ {
		code := s.newCode()
		_, err := tx.GetAccountByReferralCode(ctx, code)
		if errors.Is(err, domain.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errors.New("could not generate a unique referral code")
}

// ApplyReferralCode define o indicador uma única vez
func (s *Service) ApplyReferralCode(ctx context.Context, userID, code string) (*domain.Account, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("%w: referralCode", domain.ErrMissingField)
	}

	var acc *domain.Account
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		a, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		if a.ReferredBy != "" {
			return domain.ErrReferralAlreadySet
		}
		if a.ReferralCode == code {
			return domain.ErrSelfReferral
		}
		if _, err := tx.GetAccountByReferralCode(ctx, code); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrUnknownReferralCode
			}
			return err
		}
		if err := tx.SetReferredBy(ctx, userID, code); err != nil {
			return err
		}
		a.ReferredBy = code
		acc = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *Service) Get(ctx context.Context, userID string) (*domain.Account, error) {
	var acc *domain.Account
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		acc, err = tx.GetAccount(ctx, userID)
		return err
	})
	return acc, err
}

// SetVIPLevel é o override do admin; nunca rebaixa. Retorna o nível efetivo.
func (s *Service) SetVIPLevel(ctx context.Context, userID string, level int) (int, error) {
	level = vip.Clamp(level)

	var effective int
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		effective, err = tx.RaiseVIPLevel(ctx, userID, level)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("vip level override",
		zap.String("userId", userID),
		zap.Int("requested", level),
		zap.Int("effective", effective),
	)
	return effective, nil
}

// Ledger lista as últimas movimentações de saldo do usuário
func (s *Service) Ledger(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListLedger(ctx, userID, limit)
		return err
	})
	return out, err
}
