package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFindByAddressPrefersPending(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Create(ctx, Transaction{ID: "a", Kind: KindWithdrawal, Address: "0xdst", Owner: "0xo"})
	_ = m.Create(ctx, Transaction{ID: "b", Kind: KindWithdrawal, Address: "0xdst", Owner: "0xo"})
	if err := m.MarkSuccess(ctx, "b", "ipn-1", decimal.NewFromInt(5)); err != nil {
		t.Fatal(err)
	}

	got, err := m.FindByAddress(ctx, "0xdst", KindWithdrawal)
	if err != nil || got.ID != "a" {
		t.Fatalf("got %+v, %v", got, err)
	}
	if _, err := m.FindByAddress(ctx, "0xdst", KindDeposit); !errors.Is(err, ErrNotFound) {
		t.Fatalf("kind filter err = %v", err)
	}
}

func TestSettleOnlyOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Create(ctx, Transaction{ID: "a", Kind: KindDeposit, Address: "0xdep", Owner: "0xo"})

	if err := m.MarkSuccess(ctx, "a", "ipn-1", decimal.NewFromInt(1)); err != nil {
		t.Fatal(err)
	}
	if err := m.MarkSuccess(ctx, "a", "ipn-2", decimal.NewFromInt(1)); !errors.Is(err, ErrNotPending) {
		t.Fatalf("err = %v", err)
	}
	if err := m.MarkFailed(ctx, "a", "ipn-3"); !errors.Is(err, ErrNotPending) {
		t.Fatalf("err = %v", err)
	}
	got, _ := m.Lock(ctx, "a")
	if got.CorrelationID != "ipn-1" || got.SettledAt == nil {
		t.Fatalf("got %+v", got)
	}
}

func TestFindByCorrelation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Create(ctx, Transaction{ID: "a", Kind: KindDeposit, Address: "0xdep", Owner: "0xo"})

	if _, err := m.FindByCorrelation(ctx, "ipn-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("before settle err = %v", err)
	}
	_ = m.MarkSuccess(ctx, "a", "ipn-1", decimal.NewFromInt(1))
	got, err := m.FindByCorrelation(ctx, "ipn-1")
	if err != nil || got.ID != "a" {
		t.Fatalf("got %+v, %v", got, err)
	}
	if _, err := m.FindByCorrelation(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty id err = %v", err)
	}
}
