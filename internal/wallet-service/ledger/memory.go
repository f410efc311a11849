package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Memory implementa o Ledger em memória com um mutex por conta.
// Usado em testes e no modo local sem Postgres.
type Memory struct {
	mu           sync.Mutex // protege os mapas abaixo
	locks        map[string]*sync.Mutex
	accounts     map[string]*Account
	names        map[string]string
	reservations map[string]*Reservation
	entries      []Entry
	now          func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		locks:        make(map[string]*sync.Mutex),
		accounts:     make(map[string]*Account),
		names:        make(map[string]string),
		reservations: make(map[string]*Reservation),
		now:          time.Now,
	}
}

// lock adquire o mutex da conta; operações em contas diferentes não se bloqueiam
func (m *Memory) lock(address string) func() {
	m.mu.Lock()
	l, ok := m.locks[address]
	if !ok {
		l = &sync.Mutex{}
		m.locks[address] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (m *Memory) account(address string) (*Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[address]
	return a, ok
}

// setStatus grava o status com os dois locks; leitores podem usar qualquer um deles
func (m *Memory) setStatus(r *Reservation, status string) {
	m.mu.Lock()
	r.Status = status
	m.mu.Unlock()
}

func (m *Memory) appendEntry(e Entry) {
	m.mu.Lock()
	e.CreatedAt = m.now()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
}

// GetOrCreate retorna a conta, criando com saldo zero no primeiro acesso
func (m *Memory) GetOrCreate(_ context.Context, address string) (Account, error) {
	address = NormalizeAddress(address)
	unlock := m.lock(address)
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[address]
	if !ok {
		a = &Account{Address: address, Balance: decimal.Zero, Version: 1, CreatedAt: m.now()}
		m.accounts[address] = a
	}
	return *a, nil
}

func (m *Memory) Account(_ context.Context, address string) (Account, error) {
	address = NormalizeAddress(address)
	unlock := m.lock(address)
	defer unlock()
	a, ok := m.account(address)
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return *a, nil
}

func (m *Memory) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	a, err := m.Account(ctx, address)
	if err != nil {
		return decimal.Zero, err
	}
	return a.Balance, nil
}

// SetDisplayName define o nome de exibição, único entre contas
func (m *Memory) SetDisplayName(_ context.Context, address, name string) (Account, error) {
	address = NormalizeAddress(address)
	unlock := m.lock(address)
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[address]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	if owner, taken := m.names[name]; taken && owner != address {
		return Account{}, ErrDisplayNameTaken
	}
	if a.DisplayName != nil {
		delete(m.names, *a.DisplayName)
	}
	n := name
	a.DisplayName = &n
	m.names[name] = address
	return *a, nil
}

// Reserve debita o valor e registra uma reserva PENDING
// Idempotente por ref: uma segunda chamada devolve a reserva existente
func (m *Memory) Reserve(_ context.Context, address string, amount decimal.Decimal, ref string) (Reservation, error) {
	if !amount.IsPositive() {
		return Reservation{}, ErrInvalidAmount
	}
	address = NormalizeAddress(address)
	unlock := m.lock(address)
	defer unlock()

	a, ok := m.account(address)
	if !ok {
		return Reservation{}, ErrAccountNotFound
	}

	m.mu.Lock()
	existing, dup := m.reservations[ref]
	m.mu.Unlock()
	if dup {
		return *existing, nil
	}

	if a.Balance.LessThan(amount) {
		return Reservation{}, ErrInsufficientFunds
	}

	a.Balance = a.Balance.Sub(amount)
	a.Version++

	res := &Reservation{ID: uuid.NewString(), Address: address, Ref: ref, Amount: amount, Status: StatusPending, CreatedAt: m.now()}
	m.mu.Lock()
	m.reservations[ref] = res
	m.mu.Unlock()

	m.appendEntry(Entry{Address: address, Operation: OpReserve, Amount: amount, BalanceAfter: a.Balance, Reason: "reserve:" + ref, Ref: ref})
	return *res, nil
}

// Commit efetiva uma reserva; idempotente se já estiver COMMITTED
func (m *Memory) Commit(_ context.Context, ref string) (Reservation, error) {
	m.mu.Lock()
	res, ok := m.reservations[ref]
	m.mu.Unlock()
	if !ok {
		return Reservation{}, ErrNotFound
	}

	unlock := m.lock(res.Address)
	defer unlock()

	switch res.Status {
	case StatusCommitted:
		return *res, nil
	case StatusRefunded:
		return *res, ErrReservationClosed
	}
	m.setStatus(res, StatusCommitted)

	a, _ := m.account(res.Address)
	m.appendEntry(Entry{Address: res.Address, Operation: OpCommit, Amount: res.Amount, BalanceAfter: a.Balance, Reason: "commit:" + ref, Ref: ref})
	return *res, nil
}

// Refund devolve o valor de uma reserva PENDING; idempotente se já estiver REFUNDED
func (m *Memory) Refund(_ context.Context, ref string) (Reservation, decimal.Decimal, error) {
	m.mu.Lock()
	res, ok := m.reservations[ref]
	m.mu.Unlock()
	if !ok {
		return Reservation{}, decimal.Zero, ErrNotFound
	}

	unlock := m.lock(res.Address)
	defer unlock()

	a, _ := m.account(res.Address)
	switch res.Status {
	case StatusRefunded:
		return *res, a.Balance, nil
	case StatusCommitted:
		return *res, a.Balance, ErrReservationClosed
	}

	a.Balance = a.Balance.Add(res.Amount)
	a.Version++
	m.setStatus(res, StatusRefunded)

	m.appendEntry(Entry{Address: res.Address, Operation: OpRefund, Amount: res.Amount, BalanceAfter: a.Balance, Reason: "refund:" + ref, Ref: ref})
	return *res, a.Balance, nil
}

func (m *Memory) Credit(_ context.Context, address string, amount decimal.Decimal, reason, ref string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	address = NormalizeAddress(address)
	unlock := m.lock(address)
	defer unlock()

	a, ok := m.account(address)
	if !ok {
		return decimal.Zero, ErrAccountNotFound
	}
	a.Balance = a.Balance.Add(amount)
	a.Version++

	m.appendEntry(Entry{Address: address, Operation: OpCredit, Amount: amount, BalanceAfter: a.Balance, Reason: reason, Ref: ref})
	return a.Balance, nil
}

func (m *Memory) Debit(_ context.Context, address string, amount decimal.Decimal, reason, ref string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	address = NormalizeAddress(address)
	unlock := m.lock(address)
	defer unlock()

	a, ok := m.account(address)
	if !ok {
		return decimal.Zero, ErrAccountNotFound
	}
	if a.Balance.LessThan(amount) {
		return a.Balance, ErrInsufficientFunds
	}
	a.Balance = a.Balance.Sub(amount)
	a.Version++

	m.appendEntry(Entry{Address: address, Operation: OpDebit, Amount: amount, BalanceAfter: a.Balance, Reason: reason, Ref: ref})
	return a.Balance, nil
}

// ListStale lista reservas PENDING criadas antes de before, mais antigas primeiro
func (m *Memory) ListStale(_ context.Context, before time.Time, limit int) ([]Reservation, error) {
	m.mu.Lock()
	var out []Reservation
	for _, r := range m.reservations {
		if r.Status == StatusPending && r.CreatedAt.Before(before) {
			out = append(out, *r)
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Entries retorna uma cópia do ledger de auditoria de um endereço
func (m *Memory) Entries(address string) []Entry {
	address = NormalizeAddress(address)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if e.Address == address {
			out = append(out, e)
		}
	}
	return out
}
