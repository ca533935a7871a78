package purchase

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/airvend/airvend/internal/account"
	"github.com/airvend/airvend/internal/config"
	"github.com/airvend/airvend/internal/eligibility"
	"github.com/airvend/airvend/internal/ledger"
	"github.com/airvend/airvend/internal/network"
	"github.com/airvend/airvend/internal/recorder"
	"github.com/airvend/airvend/internal/settlement"
)

type fixture struct {
	svc      *Service
	store    ledger.Store
	accounts *account.Service
	recorder *recorder.MemoryRecorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	rules := config.DefaultRules()

	classifier := network.NewClassifier(rules.Network)
	calculator, err := settlement.NewCalculator(rules.Settlement)
	if err != nil {
		t.Fatalf("build calculator: %v", err)
	}
	store := ledger.NewInMemory(ledger.PolicyFromRules(rules.Allocation))
	gate := eligibility.NewGate(store, rules.Eligibility)
	repo := account.NewMemoryRepository()
	rec := recorder.NewMemoryRecorder()

	svc, err := NewService(context.Background(), classifier, calculator, store, gate, repo, rec, nil)
	if err != nil {
		t.Fatalf("build purchase service: %v", err)
	}
	return fixture{
		svc:      svc,
		store:    store,
		accounts: account.NewService(repo, store),
		recorder: rec,
	}
}

func (f fixture) register(t *testing.T, msisdn string, role settlement.Role) account.Account {
	t.Helper()
	acct, err := f.accounts.Register(context.Background(), account.RegisterInput{MSISDN: msisdn, Role: role})
	if err != nil {
		t.Fatalf("register %s: %v", msisdn, err)
	}
	return acct
}

func d(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}

func TestVendorPurchaseSplitsMarkup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := f.register(t, "0821234567", settlement.RoleVendor)

	res, err := f.svc.Purchase(ctx, Input{
		PurchaserID:    vendor.ID,
		ProductNetwork: network.Network("Vodacom"),
		ProductWallet:  ledger.WalletAirtime,
		FaceValue:      d("550"),
		Markup:         d("100"),
		Mode:           settlement.ModeSelf,
		ClientTxID:     "tx-1",
	})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if !res.Settlement.Total().Equal(d("100")) {
		t.Fatalf("settlement leaked: %s", res.Settlement.Total())
	}

	snap, _ := f.store.Snapshot(ctx, vendor.ID)
	if !snap.Wallets[ledger.WalletCommission].Balance.Equal(d("75")) {
		t.Fatalf("vendor commission = %s, want 75", snap.Wallets[ledger.WalletCommission].Balance)
	}
	adminSnap, _ := f.store.Snapshot(ctx, ledger.AdminAccountCode)
	if !adminSnap.Wallets[ledger.WalletFees].Balance.Equal(d("12.5")) {
		t.Fatalf("admin fee = %s, want 12.5", adminSnap.Wallets[ledger.WalletFees].Balance)
	}
	platformSnap, _ := f.store.Snapshot(ctx, ledger.PlatformAccountCode)
	if !platformSnap.Wallets[ledger.WalletFees].Balance.Equal(d("12.5")) {
		t.Fatalf("platform share = %s, want 12.5", platformSnap.Wallets[ledger.WalletFees].Balance)
	}

	entries := f.recorder.Entries()
	if len(entries) != 1 || entries[0].ClientTxID != "tx-1" {
		t.Fatalf("expected one recorded entry, got %+v", entries)
	}
}

func TestCustomerSelfPurchaseCashback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.register(t, "0831234567", settlement.RoleCustomer)

	if _, err := f.svc.Purchase(ctx, Input{
		PurchaserID:    customer.ID,
		ProductNetwork: network.Network("MTN"),
		ProductWallet:  ledger.WalletAirtime,
		FaceValue:      d("50"),
		Markup:         d("10"),
		Mode:           settlement.ModeSelf,
	}); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	snap, _ := f.store.Snapshot(ctx, customer.ID)
	if !snap.Wallets[ledger.WalletCashback].Balance.Equal(d("5")) {
		t.Fatalf("customer cashback = %s, want 5", snap.Wallets[ledger.WalletCashback].Balance)
	}
}

func TestAdminSelfPurchaseCashbackLandsOnPurchaser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.register(t, "0821111111", settlement.RoleAdmin)

	if _, err := f.svc.Purchase(ctx, Input{
		PurchaserID:    admin.ID,
		ProductNetwork: network.Network("Vodacom"),
		ProductWallet:  ledger.WalletData,
		FaceValue:      d("100"),
		Markup:         d("20"),
		Mode:           settlement.ModeSelf,
	}); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	// Admin self-purchase earns the 75% cashback-equivalent directly.
	snap, _ := f.store.Snapshot(ctx, admin.ID)
	if !snap.Wallets[ledger.WalletCashback].Balance.Equal(d("15")) {
		t.Fatalf("admin cashback = %s, want 15", snap.Wallets[ledger.WalletCashback].Balance)
	}
}

func TestGiftToRegisteredRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	purchaser := f.register(t, "0831234567", settlement.RoleCustomer)
	recipient := f.register(t, "0821234567", settlement.RoleCustomer)

	if _, err := f.svc.Purchase(ctx, Input{
		PurchaserID:     purchaser.ID,
		RecipientMSISDN: "0821234567",
		ProductNetwork:  network.Network("Vodacom"),
		ProductWallet:   ledger.WalletAirtime,
		FaceValue:       d("100"),
		Markup:          d("40"),
		Mode:            settlement.ModeGiftRegistered,
	}); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	purchaserSnap, _ := f.store.Snapshot(ctx, purchaser.ID)
	recipientSnap, _ := f.store.Snapshot(ctx, recipient.ID)
	if !purchaserSnap.Wallets[ledger.WalletCashback].Balance.Equal(d("20")) {
		t.Fatalf("purchaser reward = %s, want 20", purchaserSnap.Wallets[ledger.WalletCashback].Balance)
	}
	if !recipientSnap.Wallets[ledger.WalletCashback].Balance.Equal(d("20")) {
		t.Fatalf("recipient reward = %s, want 20", recipientSnap.Wallets[ledger.WalletCashback].Balance)
	}
}

func TestGiftToUnregisteredRecipientEscrows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	purchaser := f.register(t, "0831234567", settlement.RoleCustomer)

	if _, err := f.svc.Purchase(ctx, Input{
		PurchaserID:     purchaser.ID,
		RecipientMSISDN: "0721234567",
		ProductNetwork:  network.Network("Vodacom"),
		ProductWallet:   ledger.WalletAirtime,
		FaceValue:       d("100"),
		Markup:          d("40"),
		Mode:            settlement.ModeGiftUnregistered,
	}); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	escrowSnap, _ := f.store.Snapshot(ctx, ledger.EscrowAccountCode)
	if !escrowSnap.Wallets["0721234567"].Balance.Equal(d("20")) {
		t.Fatalf("escrowed share = %s, want 20", escrowSnap.Wallets["0721234567"].Balance)
	}
}

func TestGiftToUnknownRecipientBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	purchaser := f.register(t, "0831234567", settlement.RoleCustomer)

	_, err := f.svc.Purchase(ctx, Input{
		PurchaserID:     purchaser.ID,
		RecipientMSISDN: "0821234567",
		ProductNetwork:  network.Network("Vodacom"),
		ProductWallet:   ledger.WalletAirtime,
		FaceValue:       d("100"),
		Markup:          d("40"),
		Mode:            settlement.ModeGiftRegistered,
	})
	if !errors.Is(err, ErrRecipientNotRegistered) {
		t.Fatalf("expected ErrRecipientNotRegistered, got %v", err)
	}
}

func TestNetworkMismatchBlocksPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.register(t, "0831234567", settlement.RoleCustomer) // MTN number

	_, err := f.svc.Purchase(ctx, Input{
		PurchaserID:    customer.ID,
		ProductNetwork: network.Network("Vodacom"),
		ProductWallet:  ledger.WalletAirtime,
		FaceValue:      d("50"),
		Markup:         d("10"),
		Mode:           settlement.ModeSelf,
	})
	if !errors.Is(err, ErrNetworkMismatch) {
		t.Fatalf("expected ErrNetworkMismatch, got %v", err)
	}

	// Nothing was credited.
	snap, _ := f.store.Snapshot(ctx, customer.ID)
	if len(snap.Wallets) != 0 {
		t.Fatalf("blocked purchase mutated balances: %+v", snap.Wallets)
	}
}

func TestUnknownNetworkBlocksPurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.register(t, "0009999999", settlement.RoleCustomer)

	_, err := f.svc.Purchase(ctx, Input{
		PurchaserID:    customer.ID,
		ProductNetwork: network.Network("Vodacom"),
		ProductWallet:  ledger.WalletAirtime,
		FaceValue:      d("50"),
		Markup:         d("10"),
		Mode:           settlement.ModeSelf,
	})
	if !errors.Is(err, ErrUnknownNetwork) {
		t.Fatalf("expected ErrUnknownNetwork, got %v", err)
	}
}

func TestPoolFundedPurchaseConsultsGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.register(t, "0821234567", settlement.RoleCustomer)
	f.store.EnsurePool(ctx, "pool:data")
	f.store.TopUpPool(ctx, "pool:data", d("10000"))

	// Sufficient balances: the gate refuses before the ledger is touched.
	ledger.SeedWallet(f.store, customer.ID, ledger.WalletAirtime, d("200"))
	ledger.SeedWallet(f.store, customer.ID, ledger.WalletData, d("5000"))

	_, err := f.svc.Purchase(ctx, Input{
		PurchaserID:    customer.ID,
		ProductNetwork: network.Network("Vodacom"),
		ProductWallet:  ledger.WalletData,
		FaceValue:      d("100"),
		Markup:         d("10"),
		Mode:           settlement.ModeSelf,
		FundFromPool:   true,
		PoolID:         "pool:data",
	})
	if !errors.Is(err, eligibility.ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
	remaining, _ := f.store.PoolBalance(ctx, "pool:data")
	if !remaining.Equal(d("10000")) {
		t.Fatalf("gate refusal still drew from pool: %s", remaining)
	}
}

func TestPoolFundedPurchaseAllocates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := f.register(t, "0821234567", settlement.RoleCustomer)
	f.store.EnsurePool(ctx, "pool:data")
	f.store.TopUpPool(ctx, "pool:data", d("10000"))

	res, err := f.svc.Purchase(ctx, Input{
		PurchaserID:    customer.ID,
		ProductNetwork: network.Network("Vodacom"),
		ProductWallet:  ledger.WalletData,
		FaceValue:      d("500"),
		Markup:         d("50"),
		Mode:           settlement.ModeSelf,
		FundFromPool:   true,
		PoolID:         "pool:data",
		ClientTxID:     "pool-tx-1",
	})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if res.TransactionID == "" {
		t.Fatalf("missing transaction id")
	}

	snap, _ := f.store.Snapshot(ctx, customer.ID)
	data := snap.Wallets[ledger.WalletData]
	if !data.Balance.Equal(d("500")) || !data.Allocated.Equal(d("500")) {
		t.Fatalf("pool allocation missing from wallet: %+v", data)
	}
	remaining, _ := f.store.PoolBalance(ctx, "pool:data")
	if !remaining.Equal(d("9500")) {
		t.Fatalf("pool balance = %s, want 9500", remaining)
	}
}
