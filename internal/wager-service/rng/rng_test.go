package rng

import (
	"errors"
	"testing"
)

func TestCryptoSourceBounds(t *testing.T) {
	var src CryptoSource
	for i := 0; i < 1000; i++ {
		v, err := src.Draw(100)
		if err != nil {
			t.Fatal(err)
		}
		if v < 0 || v >= 100 {
			t.Fatalf("draw out of range: %d", v)
		}
	}
	if _, err := src.Draw(0); err == nil {
		t.Fatal("expected error for zero bound")
	}
}

func TestFixed(t *testing.T) {
	f := NewFixed(30, 7)
	if v, _ := f.Draw(100); v != 30 {
		t.Fatalf("first = %d", v)
	}
	if v, _ := f.Draw(100); v != 7 {
		t.Fatalf("second = %d", v)
	}
	if _, err := f.Draw(100); !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v", err)
	}
	if f.Calls() != 2 {
		t.Fatalf("calls = %d", f.Calls())
	}
}
