package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seeded(t *testing.T, address, balance string) *Memory {
	t.Helper()
	m := NewMemory()
	ctx := context.Background()
	if _, err := m.GetOrCreate(ctx, address); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Credit(ctx, address, d(balance), "seed", "seed"); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestReserveCommitRefund(t *testing.T) {
	ctx := context.Background()
	m := seeded(t, "0xABC", "100")

	res, err := m.Reserve(ctx, "0xabc", d("30"), "bet-1")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if res.Status != StatusPending {
		t.Fatalf("status = %s", res.Status)
	}
	if bal, _ := m.Balance(ctx, "0xabc"); !bal.Equal(d("70")) {
		t.Fatalf("balance after reserve = %s", bal)
	}

	// mesma ref não debita duas vezes
	again, err := m.Reserve(ctx, "0xabc", d("30"), "bet-1")
	if err != nil || again.ID != res.ID {
		t.Fatalf("reserve replay = %+v, %v", again, err)
	}
	if bal, _ := m.Balance(ctx, "0xabc"); !bal.Equal(d("70")) {
		t.Fatalf("balance after replay = %s", bal)
	}

	if _, bal, err := m.Refund(ctx, "bet-1"); err != nil || !bal.Equal(d("100")) {
		t.Fatalf("refund = %s, %v", bal, err)
	}
	if _, bal, err := m.Refund(ctx, "bet-1"); err != nil || !bal.Equal(d("100")) {
		t.Fatalf("second refund = %s, %v", bal, err)
	}
	if _, err := m.Commit(ctx, "bet-1"); !errors.Is(err, ErrReservationClosed) {
		t.Fatalf("commit after refund: %v", err)
	}

	if _, err := m.Reserve(ctx, "0xabc", d("40"), "bet-2"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Commit(ctx, "bet-2"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := m.Refund(ctx, "bet-2"); !errors.Is(err, ErrReservationClosed) {
		t.Fatalf("refund after commit: %v", err)
	}
	if bal, _ := m.Balance(ctx, "0xabc"); !bal.Equal(d("60")) {
		t.Fatalf("final balance = %s", bal)
	}
}

func TestReserveInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	m := seeded(t, "0xabc", "10")

	if _, err := m.Reserve(ctx, "0xabc", d("10.01"), "bet-1"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v", err)
	}
	if _, err := m.Reserve(ctx, "0xabc", d("0"), "bet-2"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount err = %v", err)
	}
	if _, err := m.Reserve(ctx, "0xdef", d("1"), "bet-3"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("unknown account err = %v", err)
	}
	if bal, _ := m.Balance(ctx, "0xabc"); !bal.Equal(d("10")) {
		t.Fatalf("balance changed: %s", bal)
	}
}

func TestDebitNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	m := seeded(t, "0xabc", "5")

	if _, err := m.Debit(ctx, "0xabc", d("6"), "withdrawal", "tx-1"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v", err)
	}
	bal, err := m.Debit(ctx, "0xabc", d("5"), "withdrawal", "tx-2")
	if err != nil || !bal.IsZero() {
		t.Fatalf("debit = %s, %v", bal, err)
	}
}

// N reservas concorrentes de S sobre saldo B: exatamente floor(B/S) passam
func TestConcurrentReservations(t *testing.T) {
	ctx := context.Background()
	m := seeded(t, "0xabc", "100")

	const n = 50
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Reserve(ctx, "0xabc", d("7"), decimal.NewFromInt(int64(i)).String())
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			} else if !errors.Is(err, ErrInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if accepted != 14 {
		t.Fatalf("accepted = %d, want 14", accepted)
	}
	if bal, _ := m.Balance(ctx, "0xabc"); !bal.Equal(d("2")) {
		t.Fatalf("balance = %s, want 2", bal)
	}
}

// a soma dos créditos menos débitos do ledger bate com o saldo final
func TestEntriesReconcileWithBalance(t *testing.T) {
	ctx := context.Background()
	m := seeded(t, "0xabc", "50")

	_, _ = m.Reserve(ctx, "0xabc", d("10"), "b1")
	_, _ = m.Commit(ctx, "b1")
	_, _ = m.Credit(ctx, "0xabc", d("19.60"), "win", "b1")
	_, _ = m.Reserve(ctx, "0xabc", d("5"), "b2")
	_, _, _ = m.Refund(ctx, "b2")
	_, _ = m.Debit(ctx, "0xabc", d("20"), "withdrawal", "w1")

	sum := decimal.Zero
	for _, e := range m.Entries("0xabc") {
		switch e.Operation {
		case OpCredit, OpRefund:
			sum = sum.Add(e.Amount)
		case OpReserve, OpDebit:
			sum = sum.Sub(e.Amount)
		}
	}
	bal, _ := m.Balance(ctx, "0xabc")
	if !sum.Equal(bal) || !bal.Equal(d("39.60")) {
		t.Fatalf("entries sum %s, balance %s", sum, bal)
	}
}

func TestSetDisplayNameUnique(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, _ = m.GetOrCreate(ctx, "0xa")
	_, _ = m.GetOrCreate(ctx, "0xb")

	if _, err := m.SetDisplayName(ctx, "0xa", "lucky"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SetDisplayName(ctx, "0xb", "lucky"); !errors.Is(err, ErrDisplayNameTaken) {
		t.Fatalf("err = %v", err)
	}
	if _, err := m.SetDisplayName(ctx, "0xa", "luckier"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SetDisplayName(ctx, "0xb", "lucky"); err != nil {
		t.Fatalf("released name should be free: %v", err)
	}
}

func TestListStale(t *testing.T) {
	ctx := context.Background()
	m := seeded(t, "0xabc", "100")
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	m.now = func() time.Time { return now }

	_, _ = m.Reserve(ctx, "0xabc", d("10"), "old")
	now = base.Add(time.Minute)
	_, _ = m.Reserve(ctx, "0xabc", d("10"), "committed")
	_, _ = m.Commit(ctx, "committed")
	now = base.Add(2 * time.Minute)
	_, _ = m.Reserve(ctx, "0xabc", d("10"), "older-than-cut")
	now = base.Add(10 * time.Minute)
	_, _ = m.Reserve(ctx, "0xabc", d("10"), "fresh")

	stale, err := m.ListStale(ctx, base.Add(5*time.Minute), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 2 || stale[0].Ref != "old" || stale[1].Ref != "older-than-cut" {
		t.Fatalf("stale = %+v", stale)
	}
	if one, _ := m.ListStale(ctx, base.Add(5*time.Minute), 1); len(one) != 1 || one[0].Ref != "old" {
		t.Fatalf("limit = %+v", one)
	}
}

func TestConcurrentAccountAccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if _, err := m.GetOrCreate(ctx, "0xabc"); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, _ = m.GetOrCreate(ctx, "0xabc")
		}()
		go func() {
			defer wg.Done()
			_, _ = m.Credit(ctx, "0xabc", d("1"), "c", "c")
		}()
		go func(i int) {
			defer wg.Done()
			_, _ = m.SetDisplayName(ctx, "0xabc", fmt.Sprintf("name-%d", i))
		}(i)
	}
	wg.Wait()

	a, err := m.Account(ctx, "0xabc")
	if err != nil {
		t.Fatal(err)
	}
	if a.DisplayName == nil || !a.Balance.Equal(d("20")) {
		t.Fatalf("account = %+v", a)
	}
}
