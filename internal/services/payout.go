package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/clients/justthetip"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/repos"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/types"
)

var (
	// ErrWalletPayoutUnsupported is returned for the wallet preference. The
	// amount is banked as pending; nothing is lost, nothing is pretended.
	ErrWalletPayoutUnsupported = errors.New("wallet payouts are not yet supported")

	// ErrDiscordNotLinked means the justthetip route cannot run because the
	// profile has no Discord account. The amount is banked as pending.
	ErrDiscordNotLinked = errors.New("no linked Discord account for balance payout")

	// ErrCreditFailed wraps a balance-service failure. The amount is banked
	// as pending and a failed transaction row records the attempt.
	ErrCreditFailed = errors.New("balance credit failed")

	// ErrNothingPending means a manual payout was requested with an empty
	// pending balance.
	ErrNothingPending = errors.New("no pending balance to pay out")
)

// Split payouts route through the Discord balance only below this total;
// larger totals wait for wallet support.
const splitWalletThreshold = 25.0

const defaultMinimumPayout = 5.0

// PayoutResult says exactly what happened to the money. Disbursed and
// Deferred always sum to Total.
type PayoutResult struct {
	Total         float64            `json:"total"`
	Method        types.PayoutMethod `json:"method"`
	Disbursed     float64            `json:"disbursed"`
	Deferred      float64            `json:"deferred"`
	TransactionID string             `json:"transaction_id,omitempty"`
}

// PayoutSummary backs the earnings dashboard.
type PayoutSummary struct {
	PendingBalance     float64                    `json:"pending_balance"`
	MinimumPayout      float64                    `json:"minimum_payout"`
	PayoutPreference   types.PayoutPreference     `json:"payout_preference"`
	YearEarnings       *types.UserEarnings        `json:"year_earnings"`
	RecentTransactions []*types.PayoutTransaction `json:"recent_transactions"`
}

type PayoutService interface {
	ProcessPayout(ctx context.Context, profile *types.Profile, amount float64, source types.EarningSource, sourceID int64) (*PayoutResult, error)
	ProcessReferralPayout(ctx context.Context, referrerID uuid.UUID, amount float64, referralID int64) (*PayoutResult, error)
	ManualPayout(ctx context.Context, userID uuid.UUID) (*PayoutResult, error)
	Summary(ctx context.Context, userID uuid.UUID) (*PayoutSummary, error)
}

type payoutService struct {
	log      *logger.Logger
	db       *gorm.DB
	tips     justthetip.Client
	profiles repos.ProfileRepo
	pending  repos.PendingEarningRepo
	earnings repos.UserEarningsRepo
	txns     repos.PayoutTransactionRepo
}

func NewPayoutService(
	log *logger.Logger,
	db *gorm.DB,
	tips justthetip.Client,
	profiles repos.ProfileRepo,
	pending repos.PendingEarningRepo,
	earnings repos.UserEarningsRepo,
	txns repos.PayoutTransactionRepo,
) PayoutService {
	return &payoutService{
		log:      log.With("service", "PayoutService"),
		db:       db,
		tips:     tips,
		profiles: profiles,
		earnings: earnings,
		pending:  pending,
		txns:     txns,
	}
}

// ProcessPayout banks or disburses a fresh earning. The whole decision runs
// in one transaction with the user's pending rows locked, so concurrent
// postbacks for the same user serialize instead of both reading the same
// pending sum.
//
// Routing failures (wallet preference, unlinked Discord, credit error) still
// commit: the earning lands in pending and the typed error tells the caller
// why nothing was disbursed.
func (s *payoutService) ProcessPayout(ctx context.Context, profile *types.Profile, amount float64, source types.EarningSource, sourceID int64) (*PayoutResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("payout amount must be positive, got %.2f", amount)
	}

	var result *PayoutResult
	var routeErr error

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pendingSum, pendingIDs, err := s.pending.SumPendingForUpdate(ctx, tx, profile.UserID)
		if err != nil {
			return err
		}
		total := pendingSum + amount

		minimum := profile.MinimumPayout
		if minimum <= 0 {
			minimum = defaultMinimumPayout
		}

		if total < minimum {
			if err := s.bank(ctx, tx, profile.UserID, amount, source, sourceID); err != nil {
				return err
			}
			result = &PayoutResult{Total: total, Method: methodFor(profile.PayoutPreference), Deferred: total}
			return nil
		}

		method := methodFor(profile.PayoutPreference)
		switch {
		case method == types.MethodWallet:
			if err := s.bank(ctx, tx, profile.UserID, amount, source, sourceID); err != nil {
				return err
			}
			result = &PayoutResult{Total: total, Method: method, Deferred: total}
			routeErr = ErrWalletPayoutUnsupported
			return nil

		case method == types.MethodSplit && total >= splitWalletThreshold:
			if err := s.bank(ctx, tx, profile.UserID, amount, source, sourceID); err != nil {
				return err
			}
			result = &PayoutResult{Total: total, Method: method, Deferred: total}
			return nil
		}

		// Everything below disburses over the Discord balance.
		if profile.DiscordID == "" {
			if err := s.bank(ctx, tx, profile.UserID, amount, source, sourceID); err != nil {
				return err
			}
			result = &PayoutResult{Total: total, Method: method, Deferred: total}
			routeErr = ErrDiscordNotLinked
			return nil
		}

		transactionID := newTransactionID(types.MethodJustTheTipBalance, profile.UserID)
		reason := fmt.Sprintf("QualifyFirst earnings payout (%s)", source)

		if creditErr := s.tips.CreditBalance(ctx, profile.DiscordID, total, reason); creditErr != nil {
			if err := s.bank(ctx, tx, profile.UserID, amount, source, sourceID); err != nil {
				return err
			}
			if _, err := s.txns.Create(ctx, tx, &types.PayoutTransaction{
				UserID:        profile.UserID,
				Amount:        total,
				Type:          source,
				Method:        types.MethodJustTheTipBalance,
				Status:        types.PayoutStatusFailed,
				TransactionID: transactionID,
				ErrorMessage:  creditErr.Error(),
			}); err != nil {
				return err
			}
			result = &PayoutResult{Total: total, Method: method, Deferred: total, TransactionID: transactionID}
			routeErr = fmt.Errorf("%w: %v", ErrCreditFailed, creditErr)
			return nil
		}

		now := time.Now()
		if _, err := s.txns.Create(ctx, tx, &types.PayoutTransaction{
			UserID:        profile.UserID,
			Amount:        total,
			Type:          source,
			Method:        types.MethodJustTheTipBalance,
			Status:        types.PayoutStatusCompleted,
			TransactionID: transactionID,
			CompletedAt:   &now,
		}); err != nil {
			return err
		}
		if _, err := s.pending.Add(ctx, tx, &types.PendingEarning{
			UserID:   profile.UserID,
			Amount:   amount,
			Source:   source,
			SourceID: sourceID,
			Status:   types.EarningStatusProcessed,
		}); err != nil {
			return err
		}
		// Only the rows summed above. A pending row committed while the
		// credit call was in flight was not part of this total and must
		// survive for the next payout.
		if err := s.pending.ClearPending(ctx, tx, profile.UserID, pendingIDs); err != nil {
			return err
		}
		if err := s.earnings.Increment(ctx, tx, profile.UserID, now.Year(), total, categoryFor(source)); err != nil {
			return err
		}

		result = &PayoutResult{Total: total, Method: method, Disbursed: total, TransactionID: transactionID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Disbursed > 0 {
		s.log.Info("Disbursed payout",
			"user_id", profile.UserID.String(),
			"amount", result.Disbursed,
			"method", string(result.Method),
			"transaction_id", result.TransactionID)
	} else {
		s.log.Info("Deferred payout",
			"user_id", profile.UserID.String(),
			"amount", result.Deferred,
			"method", string(result.Method))
	}
	return result, routeErr
}

// ManualPayout disburses the entire pending balance on user request,
// bypassing the minimum threshold. Routing constraints still apply.
func (s *payoutService) ManualPayout(ctx context.Context, userID uuid.UUID) (*PayoutResult, error) {
	profile, err := s.profiles.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	var result *PayoutResult
	var routeErr error

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		total, pendingIDs, err := s.pending.SumPendingForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if total <= 0 {
			return ErrNothingPending
		}

		method := methodFor(profile.PayoutPreference)
		if method == types.MethodWallet {
			result = &PayoutResult{Total: total, Method: method, Deferred: total}
			routeErr = ErrWalletPayoutUnsupported
			return nil
		}
		if profile.DiscordID == "" {
			result = &PayoutResult{Total: total, Method: method, Deferred: total}
			routeErr = ErrDiscordNotLinked
			return nil
		}

		transactionID := newTransactionID(types.MethodJustTheTipBalance, userID)
		if creditErr := s.tips.CreditBalance(ctx, profile.DiscordID, total, "QualifyFirst manual payout"); creditErr != nil {
			if _, err := s.txns.Create(ctx, tx, &types.PayoutTransaction{
				UserID:        userID,
				Amount:        total,
				Type:          types.EarningSourceManual,
				Method:        types.MethodJustTheTipBalance,
				Status:        types.PayoutStatusFailed,
				TransactionID: transactionID,
				ErrorMessage:  creditErr.Error(),
			}); err != nil {
				return err
			}
			result = &PayoutResult{Total: total, Method: method, Deferred: total, TransactionID: transactionID}
			routeErr = fmt.Errorf("%w: %v", ErrCreditFailed, creditErr)
			return nil
		}

		now := time.Now()
		if _, err := s.txns.Create(ctx, tx, &types.PayoutTransaction{
			UserID:        userID,
			Amount:        total,
			Type:          types.EarningSourceManual,
			Method:        types.MethodJustTheTipBalance,
			Status:        types.PayoutStatusCompleted,
			TransactionID: transactionID,
			CompletedAt:   &now,
		}); err != nil {
			return err
		}
		if err := s.pending.ClearPending(ctx, tx, userID, pendingIDs); err != nil {
			return err
		}
		if err := s.earnings.Increment(ctx, tx, userID, now.Year(), total, ""); err != nil {
			return err
		}

		result = &PayoutResult{Total: total, Method: method, Disbursed: total, TransactionID: transactionID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, routeErr
}

func (s *payoutService) ProcessReferralPayout(ctx context.Context, referrerID uuid.UUID, amount float64, referralID int64) (*PayoutResult, error) {
	profile, err := s.profiles.GetByUserID(ctx, nil, referrerID)
	if err != nil {
		return nil, err
	}
	return s.ProcessPayout(ctx, profile, amount, types.EarningSourceReferral, referralID)
}

func (s *payoutService) Summary(ctx context.Context, userID uuid.UUID) (*PayoutSummary, error) {
	profile, err := s.profiles.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	pendingSum, err := s.pending.SumPending(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	yearEarnings, err := s.earnings.GetByUserAndYear(ctx, nil, userID, time.Now().Year())
	if err != nil {
		return nil, err
	}
	recent, err := s.txns.RecentByUser(ctx, nil, userID, 10)
	if err != nil {
		return nil, err
	}

	minimum := profile.MinimumPayout
	if minimum <= 0 {
		minimum = defaultMinimumPayout
	}
	return &PayoutSummary{
		PendingBalance:     pendingSum,
		MinimumPayout:      minimum,
		PayoutPreference:   profile.PayoutPreference,
		YearEarnings:       yearEarnings,
		RecentTransactions: recent,
	}, nil
}

func (s *payoutService) bank(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount float64, source types.EarningSource, sourceID int64) error {
	_, err := s.pending.Add(ctx, tx, &types.PendingEarning{
		UserID:   userID,
		Amount:   amount,
		Source:   source,
		SourceID: sourceID,
		Status:   types.EarningStatusPending,
	})
	return err
}

func methodFor(pref types.PayoutPreference) types.PayoutMethod {
	switch pref {
	case types.PayoutPreferenceWallet:
		return types.MethodWallet
	case types.PayoutPreferenceSplit:
		return types.MethodSplit
	default:
		return types.MethodJustTheTipBalance
	}
}

func categoryFor(source types.EarningSource) string {
	if source == types.EarningSourceReferral {
		return "referral"
	}
	return "survey"
}

// newTransactionID is collision-safe enough for reconciliation: method,
// millisecond timestamp, last six hex chars of the user id.
func newTransactionID(method types.PayoutMethod, userID uuid.UUID) string {
	compact := strings.ReplaceAll(userID.String(), "-", "")
	return fmt.Sprintf("%s_%d_%s", method, time.Now().UnixMilli(), compact[len(compact)-6:])
}
