package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/airvend/airvend/internal/account"
	"github.com/airvend/airvend/internal/eligibility"
	"github.com/airvend/airvend/internal/ledger"
	"github.com/airvend/airvend/internal/network"
	"github.com/airvend/airvend/internal/notification"
	"github.com/airvend/airvend/internal/recorder"
	"github.com/airvend/airvend/internal/settlement"
)

var (
	// ErrNetworkMismatch blocks a purchase whose subscriber number classifies
	// to a different carrier than the selected product.
	ErrNetworkMismatch = errors.New("subscriber number does not match product network")

	// ErrUnknownNetwork indicates the subscriber number could not be
	// classified. Recoverable: callers may prompt for manual selection.
	ErrUnknownNetwork = errors.New("subscriber number matches no known network")

	// ErrRecipientNotRegistered occurs when a gift to a registered recipient
	// names a subscriber number with no account.
	ErrRecipientNotRegistered = errors.New("gift recipient is not registered")
)

// Service runs the purchase workflow: network cross-check, settlement split,
// ledger credits, and recording. It owns no state beyond its collaborators.
type Service struct {
	classifier *network.Classifier
	calculator *settlement.Calculator
	store      ledger.Store
	gate       *eligibility.Gate
	accounts   account.Repository
	recorder   recorder.Recorder
	notifier   notification.Notifier
}

// NewService wires the purchase workflow and provisions the house ledger
// accounts settlement shares land in.
func NewService(
	ctx context.Context,
	classifier *network.Classifier,
	calculator *settlement.Calculator,
	store ledger.Store,
	gate *eligibility.Gate,
	accounts account.Repository,
	rec recorder.Recorder,
	notifier notification.Notifier,
) (*Service, error) {
	if classifier == nil || calculator == nil || store == nil || gate == nil || accounts == nil {
		return nil, fmt.Errorf("classifier, calculator, store, gate and accounts are required")
	}
	for _, code := range []string{ledger.PlatformAccountCode, ledger.EscrowAccountCode, ledger.AdminAccountCode} {
		if err := store.EnsureAccount(ctx, code); err != nil {
			return nil, err
		}
	}
	return &Service{
		classifier: classifier,
		calculator: calculator,
		store:      store,
		gate:       gate,
		accounts:   accounts,
		recorder:   rec,
		notifier:   notifier,
	}, nil
}

// Input captures one purchase event.
type Input struct {
	PurchaserID string
	// RecipientMSISDN is the number receiving the product; empty means the
	// purchaser's own number.
	RecipientMSISDN string
	ProductNetwork  network.Network
	// ProductWallet is the wallet the product lands in, airtime or data.
	ProductWallet string
	FaceValue     decimal.Decimal
	Markup        decimal.Decimal
	Mode          settlement.Mode
	// FundFromPool pays the face value from the named pool instead of an
	// external payment; the eligibility gate is consulted first.
	FundFromPool bool
	PoolID       string
	ClientTxID   string
}

// Result describes the settled purchase.
type Result struct {
	TransactionID string
	ClientTxID    string
	Network       network.Network
	Settlement    settlement.Result
	CompletedAt   time.Time
}

// Purchase executes the workflow. The classifier and calculator are pure; all
// balance effects go through the ledger, which enforces its own invariants.
func (s *Service) Purchase(ctx context.Context, input Input) (Result, error) {
	if !input.FaceValue.IsPositive() {
		return Result{}, ledger.ErrInvalidAmount
	}
	if input.Markup.IsNegative() {
		return Result{}, settlement.ErrNegativeMarkup
	}
	if input.ProductWallet != ledger.WalletAirtime && input.ProductWallet != ledger.WalletData {
		return Result{}, fmt.Errorf("unknown product wallet %q", input.ProductWallet)
	}
	if input.ClientTxID == "" {
		input.ClientTxID = uuid.NewString()
	}

	purchaser, err := s.accounts.FindByID(ctx, input.PurchaserID)
	if err != nil {
		return Result{}, err
	}

	target := input.RecipientMSISDN
	if target == "" {
		target = purchaser.MSISDN
	}

	classified := s.classifier.Classify(target)
	if classified == network.Unknown {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, target)
	}
	if classified != input.ProductNetwork {
		return Result{}, fmt.Errorf("%w: number is %s, product is %s", ErrNetworkMismatch, classified, input.ProductNetwork)
	}

	var recipient account.Account
	if input.Mode == settlement.ModeGiftRegistered {
		recipient, err = s.accounts.FindByMSISDN(ctx, target)
		if err != nil {
			if errors.Is(err, account.ErrNotFound) {
				return Result{}, fmt.Errorf("%w: %s", ErrRecipientNotRegistered, target)
			}
			return Result{}, err
		}
	}

	// Settlement is computed before any ledger mutation so an unmapped
	// context aborts the transaction with nothing applied.
	result, err := s.calculator.Compute(input.Markup, purchaser.Role, input.Mode)
	if err != nil {
		return Result{}, err
	}

	if input.FundFromPool {
		decision, err := s.gate.Check(ctx, input.PurchaserID)
		if err != nil {
			return Result{}, err
		}
		if !decision.Eligible {
			return Result{}, fmt.Errorf("%w: %s", eligibility.ErrNotEligible, decision.Reason)
		}
		allocationID := "purchase:" + input.ClientTxID
		if _, err := s.store.AllocateFromPool(ctx, input.PoolID, input.PurchaserID, input.ProductWallet, allocationID, input.FaceValue); err != nil {
			return Result{}, err
		}
	}

	for _, share := range result.Shares {
		if !share.Amount.IsPositive() {
			continue
		}
		accountID, wallet := s.shareTarget(share.Party, purchaser, recipient, target)
		if _, err := s.store.Credit(ctx, accountID, wallet, share.Amount); err != nil {
			return Result{}, fmt.Errorf("credit %s share: %w", share.Party, err)
		}
	}

	outcome := Result{
		TransactionID: uuid.NewString(),
		ClientTxID:    input.ClientTxID,
		Network:       classified,
		Settlement:    result,
		CompletedAt:   time.Now().UTC(),
	}

	if s.recorder != nil {
		entry := recorder.Entry{
			TransactionID: outcome.TransactionID,
			ClientTxID:    input.ClientTxID,
			PurchaserID:   purchaser.ID,
			RecipientID:   recipient.ID,
			Network:       string(classified),
			Role:          purchaser.Role,
			Mode:          input.Mode,
			FaceValue:     input.FaceValue,
			Markup:        input.Markup,
			Shares:        result.Shares,
			RecordedAt:    outcome.CompletedAt,
		}
		if err := s.recorder.Record(ctx, entry); err != nil {
			return Result{}, err
		}
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindSettlementPosted,
			Destination: purchaser.ID,
			Body:        fmt.Sprintf("Purchase of %s settled, markup %s distributed", input.FaceValue, input.Markup),
		})
	}

	return outcome, nil
}

// shareTarget maps a settlement party to the ledger account and wallet its
// share is credited to. The admin party is the purchaser's own cashback when
// an admin buys for themselves, and the house admin fee wallet otherwise.
func (s *Service) shareTarget(party settlement.Party, purchaser, recipient account.Account, targetMSISDN string) (string, string) {
	switch party {
	case settlement.PartyVendor:
		return purchaser.ID, ledger.WalletCommission
	case settlement.PartyCustomer:
		return purchaser.ID, ledger.WalletCashback
	case settlement.PartyAdmin:
		if purchaser.Role == settlement.RoleAdmin {
			return purchaser.ID, ledger.WalletCashback
		}
		return ledger.AdminAccountCode, ledger.WalletFees
	case settlement.PartyRecipient:
		return recipient.ID, ledger.WalletCashback
	case settlement.PartyEscrow:
		// Escrow is held per recipient number pending registration.
		return ledger.EscrowAccountCode, targetMSISDN
	default:
		return ledger.PlatformAccountCode, ledger.WalletFees
	}
}
