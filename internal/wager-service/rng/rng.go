package rng

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
)

var ErrExhausted = errors.New("rng: fixed sequence exhausted")

// Source fornece o sorteio de cada aposta: um inteiro uniforme em [0, n)
type Source interface {
	Draw(n int) (int, error)
}

// CryptoSource usa crypto/rand
type CryptoSource struct{}

func (CryptoSource) Draw(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("rng: invalid bound %d", n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("rng: %w", err)
	}
	return int(v.Int64()), nil
}

// Fixed devolve uma sequência pré-definida; usado em testes
type Fixed struct {
	mu     sync.Mutex
	values []int
	next   int
}

func NewFixed(values ...int) *Fixed {
	return &Fixed{values: values}
}

func (f *Fixed) Draw(n int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next >= len(f.values) {
		return 0, ErrExhausted
	}
	v := f.values[f.next]
	f.next++
	return v % n, nil
}

// Calls retorna quantos sorteios foram feitos
func (f *Fixed) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.next
}
