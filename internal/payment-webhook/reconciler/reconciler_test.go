package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/ipn"
	"github.com/radieske/royalbet-wager-core/internal/payment-webhook/repo"
	"github.com/radieske/royalbet-wager-core/internal/shared/idempotency"
	"github.com/radieske/royalbet-wager-core/internal/wallet-service/ledger"
	"github.com/radieske/royalbet-wager-core/pkg/contracts/events"
)

const (
	secret   = "test-secret"
	merchant = "m-1"
	owner    = "0x1111111111111111111111111111111111111111"
	depAddr  = "0xdddddddddddddddddddddddddddddddddddddddd"
	wdAddr   = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []events.AccountNotification
}

func (n *recordingNotifier) Notify(_ context.Context, e events.AccountNotification) error {
	n.mu.Lock()
	n.sent = append(n.sent, e)
	n.mu.Unlock()
	return nil
}

type fixture struct {
	rec    *Reconciler
	ledger *ledger.Memory
	txs    *repo.Memory
	guard  *idempotency.MemoryGuard
	notes  *recordingNotifier
}

func newFixture(t *testing.T, balance string) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{ledger: ledger.NewMemory(), txs: repo.NewMemory(), guard: idempotency.NewMemoryGuard(), notes: &recordingNotifier{}}
	if _, err := f.ledger.GetOrCreate(ctx, owner); err != nil {
		t.Fatal(err)
	}
	if balance != "0" {
		if _, err := f.ledger.Credit(ctx, owner, d(balance), "seed", "seed"); err != nil {
			t.Fatal(err)
		}
	}
	f.rec = New(zap.NewNop(), Config{Secret: secret, MerchantID: merchant}, Deps{
		Transactions: f.txs,
		Ledger:       f.ledger,
		Guard:        f.guard,
		Notifier:     f.notes,
	}, Hooks{})
	return f
}

func (f *fixture) pending(t *testing.T, id, kind, address, price string) {
	t.Helper()
	err := f.txs.Create(context.Background(), repo.Transaction{
		ID: id, Kind: kind, Asset: "ETH", Address: address, Owner: owner, QuotedPrice: d(price),
	})
	if err != nil {
		t.Fatal(err)
	}
}

// withdrawal cria o saque pendente e a reserva feita na iniciação
func (f *fixture) withdrawal(t *testing.T, id, amount string) {
	t.Helper()
	f.pending(t, id, repo.KindWithdrawal, wdAddr, "2000")
	if _, err := f.ledger.Reserve(context.Background(), owner, d(amount), ledger.WithdrawalRef(id)); err != nil {
		t.Fatal(err)
	}
}

func signed(n ipn.Notification) ([]byte, string) {
	if n.Merchant == "" {
		n.Merchant = merchant
	}
	body := ipn.Encode(n)
	return body, ipn.Sign(body, secret)
}

func (f *fixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), owner)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestDepositCreditedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "0")
	f.pending(t, "tx-1", repo.KindDeposit, depAddr, "2000")

	body, sig := signed(ipn.Notification{ID: "ipn-1", Type: ipn.TypeDeposit, Address: depAddr, Status: 100, Amount: ptr("0.05")})

	out, err := f.rec.Handle(ctx, body, sig)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if out.Duplicate || out.Status != StatusCredited || !out.Balance.Equal(d("100")) {
		t.Fatalf("outcome = %+v", out)
	}

	// reentrega da mesma IPN não credita de novo
	again, err := f.rec.Handle(ctx, body, sig)
	if err != nil || !again.Duplicate {
		t.Fatalf("replay = %+v, %v", again, err)
	}
	if b := f.balance(t); !b.Equal(d("100")) {
		t.Fatalf("balance = %s", b)
	}

	tx, _ := f.txs.Lock(ctx, "tx-1")
	if tx.Status != repo.StatusSuccess || tx.CorrelationID != "ipn-1" || !tx.SettledAmount.Equal(d("100")) {
		t.Fatalf("tx = %+v", tx)
	}
	if len(f.notes.sent) != 1 || f.notes.sent[0].Address != owner || f.notes.sent[0].Balance != "100.00" {
		t.Fatalf("notifications = %+v", f.notes.sent)
	}
}

func TestConcurrentReplaysCreditOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "0")
	f.pending(t, "tx-1", repo.KindDeposit, depAddr, "10")

	body, sig := signed(ipn.Notification{ID: "ipn-1", Type: ipn.TypeDeposit, Address: depAddr, Status: 100, Amount: ptr("1.5")})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.rec.Handle(ctx, body, sig); err != nil {
				t.Errorf("handle: %v", err)
			}
		}()
	}
	wg.Wait()

	if b := f.balance(t); !b.Equal(d("15")) {
		t.Fatalf("balance = %s, want 15", b)
	}
}

func TestUnauthorized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "0")
	f.pending(t, "tx-1", repo.KindDeposit, depAddr, "10")

	body, _ := signed(ipn.Notification{ID: "ipn-1", Type: ipn.TypeDeposit, Address: depAddr, Status: 100, Amount: ptr("1")})
	if _, err := f.rec.Handle(ctx, body, "deadbeef"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("bad hmac err = %v", err)
	}

	body, sig := signed(ipn.Notification{ID: "ipn-2", Type: ipn.TypeDeposit, Address: depAddr, Status: 100, Amount: ptr("1"), Merchant: "other"})
	if _, err := f.rec.Handle(ctx, body, sig); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("bad merchant err = %v", err)
	}

	if b := f.balance(t); !b.IsZero() {
		t.Fatalf("balance changed: %s", b)
	}
}

func TestUnknownTransaction(t *testing.T) {
	f := newFixture(t, "0")
	body, sig := signed(ipn.Notification{ID: "ipn-1", Type: ipn.TypeDeposit, Address: depAddr, Status: 100, Amount: ptr("1")})
	if _, err := f.rec.Handle(context.Background(), body, sig); !errors.Is(err, ErrUnknownTransaction) {
		t.Fatalf("err = %v", err)
	}
}

func TestWithdrawalCommitsReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "50")
	f.withdrawal(t, "w-1", "20")

	body, sig := signed(ipn.Notification{ID: "ipn-w", Type: ipn.TypeWithdrawal, Address: wdAddr, Status: 2, Amount: ptr("0.01")})
	out, err := f.rec.Handle(ctx, body, sig)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if out.Status != StatusDebited || !out.Balance.Equal(d("30")) || !out.Transaction.SettledAmount.Equal(d("20")) {
		t.Fatalf("outcome = %+v", out)
	}
	if b := f.balance(t); !b.Equal(d("30")) {
		t.Fatalf("balance = %s", b)
	}
	if stale, _ := f.ledger.ListStale(ctx, time.Now().Add(time.Hour), 10); len(stale) != 0 {
		t.Fatalf("reservation still pending: %+v", stale)
	}
	if len(f.notes.sent) != 1 || f.notes.sent[0].Amount != "20.00" || f.notes.sent[0].Balance != "30.00" {
		t.Fatalf("notifications = %+v", f.notes.sent)
	}
}

func TestFailedWithdrawalRefundsReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "50")
	f.withdrawal(t, "w-1", "20")

	body, sig := signed(ipn.Notification{ID: "ipn-w", Type: ipn.TypeWithdrawal, Address: wdAddr, Status: -6})
	out, err := f.rec.Handle(ctx, body, sig)
	if err != nil || out.Status != StatusFailed {
		t.Fatalf("outcome = %+v, %v", out, err)
	}
	if b := f.balance(t); !b.Equal(d("50")) {
		t.Fatalf("balance = %s, want 50", b)
	}
	tx, _ := f.txs.Lock(ctx, "w-1")
	if tx.Status != repo.StatusFailed {
		t.Fatalf("status = %s", tx.Status)
	}
	if len(f.notes.sent) != 1 || f.notes.sent[0].Balance != "50.00" {
		t.Fatalf("notifications = %+v", f.notes.sent)
	}
}

func TestWithdrawalWithoutReservationAlertsAndRetries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "50")
	f.pending(t, "w-1", repo.KindWithdrawal, wdAddr, "2000")

	alerts := 0
	f.rec.hooks.OnAlert = func(string) { alerts++ }

	body, sig := signed(ipn.Notification{ID: "ipn-w", Type: ipn.TypeWithdrawal, Address: wdAddr, Status: 100, Amount: ptr("0.01")})
	if _, err := f.rec.Handle(ctx, body, sig); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if alerts != 1 {
		t.Fatalf("alerts = %d", alerts)
	}
	tx, _ := f.txs.Lock(ctx, "w-1")
	if tx.Status != repo.StatusPending {
		t.Fatalf("status = %s", tx.Status)
	}

	// o guard foi liberado: com a reserva no lugar a mesma IPN é aplicada
	if _, err := f.ledger.Reserve(ctx, owner, d("20"), ledger.WithdrawalRef("w-1")); err != nil {
		t.Fatal(err)
	}
	out, err := f.rec.Handle(ctx, body, sig)
	if err != nil || out.Duplicate || !out.Balance.Equal(d("30")) {
		t.Fatalf("retry = %+v, %v", out, err)
	}
}

func TestAdmittedButUnsettledIPNIsApplied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "0")
	f.pending(t, "tx-1", repo.KindDeposit, depAddr, "10")

	// queda entre o Admit e o commit: o id ficou marcado mas nada foi gravado
	if ok, err := f.guard.Admit(ctx, scopeIPN, "ipn-1"); err != nil || !ok {
		t.Fatalf("admit = %v, %v", ok, err)
	}

	body, sig := signed(ipn.Notification{ID: "ipn-1", Type: ipn.TypeDeposit, Address: depAddr, Status: 100, Amount: ptr("2")})
	out, err := f.rec.Handle(ctx, body, sig)
	if err != nil || out.Duplicate || out.Status != StatusCredited {
		t.Fatalf("outcome = %+v, %v", out, err)
	}
	if b := f.balance(t); !b.Equal(d("20")) {
		t.Fatalf("balance = %s", b)
	}

	again, err := f.rec.Handle(ctx, body, sig)
	if err != nil || !again.Duplicate {
		t.Fatalf("replay = %+v, %v", again, err)
	}
	if b := f.balance(t); !b.Equal(d("20")) {
		t.Fatalf("balance after replay = %s", b)
	}
}

func TestSettledIPNIsNotReusedForNewTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "0")
	f.pending(t, "tx-1", repo.KindDeposit, depAddr, "10")

	body, sig := signed(ipn.Notification{ID: "ipn-1", Type: ipn.TypeDeposit, Address: depAddr, Status: 100, Amount: ptr("1")})
	if _, err := f.rec.Handle(ctx, body, sig); err != nil {
		t.Fatal(err)
	}

	// novo depósito pendente no mesmo endereço; a IPN antiga não pode quitá-lo
	f.pending(t, "tx-2", repo.KindDeposit, depAddr, "10")
	out, err := f.rec.Handle(ctx, body, sig)
	if err != nil || !out.Duplicate || out.Transaction.ID != "tx-1" {
		t.Fatalf("replay = %+v, %v", out, err)
	}
	tx, _ := f.txs.Lock(ctx, "tx-2")
	if tx.Status != repo.StatusPending {
		t.Fatalf("tx-2 status = %s", tx.Status)
	}
	if b := f.balance(t); !b.Equal(d("10")) {
		t.Fatalf("balance = %s", b)
	}
}

func TestLocksReleasedAfterHandle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "0")
	for i, id := range []string{"tx-1", "tx-2", "tx-3"} {
		addr := fmt.Sprintf("0x%040d", i+1)
		f.pending(t, id, repo.KindDeposit, addr, "10")
		body, sig := signed(ipn.Notification{ID: "ipn-" + id, Type: ipn.TypeDeposit, Address: addr, Status: 100, Amount: ptr("1")})
		if _, err := f.rec.Handle(ctx, body, sig); err != nil {
			t.Fatal(err)
		}
	}
	if n := f.rec.pendingLocks(); n != 0 {
		t.Fatalf("locks = %d, want 0", n)
	}
}

func TestFailedStatusLeavesBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "5")
	f.pending(t, "tx-1", repo.KindDeposit, depAddr, "10")

	body, sig := signed(ipn.Notification{ID: "ipn-1", Type: ipn.TypeDeposit, Address: depAddr, Status: -1})
	out, err := f.rec.Handle(ctx, body, sig)
	if err != nil || out.Status != StatusFailed {
		t.Fatalf("outcome = %+v, %v", out, err)
	}
	if b := f.balance(t); !b.Equal(d("5")) {
		t.Fatalf("balance = %s", b)
	}
	tx, _ := f.txs.Lock(ctx, "tx-1")
	if tx.Status != repo.StatusFailed {
		t.Fatalf("status = %s", tx.Status)
	}
	if len(f.notes.sent) != 1 || f.notes.sent[0].Balance != "" {
		t.Fatalf("notifications = %+v", f.notes.sent)
	}
}

func TestIntermediateStatusOnlyAcks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "0")
	f.pending(t, "tx-1", repo.KindDeposit, depAddr, "10")

	body, sig := signed(ipn.Notification{ID: "ipn-1", Type: ipn.TypeDeposit, Address: depAddr, Status: 1, Amount: ptr("1")})
	out, err := f.rec.Handle(ctx, body, sig)
	if err != nil || out.Status != StatusPending || out.Duplicate {
		t.Fatalf("outcome = %+v, %v", out, err)
	}

	// a IPN final com o mesmo id ainda é aplicada
	body, sig = signed(ipn.Notification{ID: "ipn-1", Type: ipn.TypeDeposit, Address: depAddr, Status: 100, Amount: ptr("1")})
	out, err = f.rec.Handle(ctx, body, sig)
	if err != nil || out.Status != StatusCredited {
		t.Fatalf("final = %+v, %v", out, err)
	}
}

func TestFiatAmountFallback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "0")
	f.pending(t, "tx-1", repo.KindDeposit, depAddr, "0")

	body, sig := signed(ipn.Notification{ID: "ipn-1", Type: ipn.TypeDeposit, Address: depAddr, Status: 100, Amount: ptr("3"), FiatAmount: ptr("12.345")})
	out, err := f.rec.Handle(ctx, body, sig)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !out.Balance.Equal(d("12.35")) {
		t.Fatalf("balance = %s", out.Balance)
	}
}

func TestMissingAmountReleasesGuard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "0")
	f.pending(t, "tx-1", repo.KindDeposit, depAddr, "10")

	body, sig := signed(ipn.Notification{ID: "ipn-1", Type: ipn.TypeDeposit, Address: depAddr, Status: 100})
	if _, err := f.rec.Handle(ctx, body, sig); !errors.Is(err, ipn.ErrMalformed) {
		t.Fatalf("err = %v", err)
	}

	body, sig = signed(ipn.Notification{ID: "ipn-1", Type: ipn.TypeDeposit, Address: depAddr, Status: 100, Amount: ptr("2")})
	out, err := f.rec.Handle(ctx, body, sig)
	if err != nil || !out.Balance.Equal(d("20")) {
		t.Fatalf("retry = %+v, %v", out, err)
	}
}
