// Package memory is an in-process storage backend. It implements every
// repository, the transaction manager and the numerator on maps guarded by
// one mutex. Transactions are serialized and roll back by restoring a
// snapshot, which makes it a faithful stand-in for the Postgres backend in
// service tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"pharmadesk/internal/core/id"
	"pharmadesk/internal/core/idempotency"
	"pharmadesk/internal/domain/auth"
	"pharmadesk/internal/domain/catalogs/product"
	"pharmadesk/internal/domain/documents/invoice"
	"pharmadesk/internal/domain/events"
	"pharmadesk/internal/domain/registers/stock"
)

// Operation names accepted by InjectFault.
const (
	OpProductCreate   = "products.create"
	OpProductUpdate   = "products.update"
	OpMovementAppend  = "movements.append"
	OpInvoiceCreate   = "invoices.create"
	OpNumeratorNext   = "numerator.next"
	OpOutboxPublish   = "outbox.publish"
	OpUserCreate      = "users.create"
	OpCachedStockSave = "products.set_cached_stock"
)

type txKey struct{}

type state struct {
	products    map[id.ID]*product.Product
	movements   []stock.Movement
	invoices    map[id.ID]*invoice.Invoice
	numbers     map[string]id.ID
	users       map[id.ID]*auth.User
	sequences   map[string]int64
	outbox      []events.Event
	idempotency map[string]*idemRecord
}

type idemRecord struct {
	userID, operation, requestHash string
	status                         idempotency.Status
	resp                           idempotency.Replay
}

func newState() *state {
	return &state{
		products:    map[id.ID]*product.Product{},
		invoices:    map[id.ID]*invoice.Invoice{},
		numbers:     map[string]id.ID{},
		users:       map[id.ID]*auth.User{},
		sequences:   map[string]int64{},
		idempotency: map[string]*idemRecord{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.products {
		c.products[k] = copyProduct(v)
	}
	c.movements = append([]stock.Movement(nil), s.movements...)
	for k, v := range s.invoices {
		c.invoices[k] = copyInvoice(v)
	}
	for k, v := range s.numbers {
		c.numbers[k] = v
	}
	for k, v := range s.users {
		u := *v
		c.users[k] = &u
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	c.outbox = append([]events.Event(nil), s.outbox...)
	for k, v := range s.idempotency {
		r := *v
		c.idempotency[k] = &r
	}
	return c
}

type fault struct {
	nth int
	err error
}

// Store holds all data. The zero value is not usable, call New.
type Store struct {
	mu     sync.Mutex
	st     *state
	faults map[string]fault
	calls  map[string]int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		st:     newState(),
		faults: map[string]fault{},
		calls:  map[string]int{},
	}
}

// InjectFault makes the nth call (1-based, counted from now) of op return
// err. nth 0 fails every call.
func (s *Store) InjectFault(op string, nth int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = fault{nth: nth, err: err}
	s.calls[op] = 0
}

// ClearFaults removes every injected fault.
func (s *Store) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = map[string]fault{}
	s.calls = map[string]int{}
}

// check is called with the lock held.
func (s *Store) check(op string) error {
	f, ok := s.faults[op]
	if !ok {
		return nil
	}
	s.calls[op]++
	if f.nth == 0 || s.calls[op] == f.nth {
		return fmt.Errorf("%s: %w", op, f.err)
	}
	return nil
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// do runs fn against the current state, taking the lock unless ctx is
// already inside a transaction of this store.
func (s *Store) do(ctx context.Context, op string, fn func(st *state) error) error {
	if !inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	if op != "" {
		if err := s.check(op); err != nil {
			return err
		}
	}
	return fn(s.st)
}

// RunInTransaction implements tx.Manager. Nested calls join the outer
// transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	committed := false
	defer func() {
		if !committed {
			s.st = snapshot
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		return err
	}
	committed = true
	return nil
}

// InTransaction implements tx.Manager.
func (s *Store) InTransaction(ctx context.Context) bool {
	return inTx(ctx)
}

// RunInSavepoint implements tx.Manager.
func (s *Store) RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	if !inTx(ctx) {
		return s.RunInTransaction(ctx, fn)
	}
	snapshot := s.st.clone()
	if err := fn(ctx); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// Events returns the outbox contents in publish order.
func (s *Store) Events() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.st.outbox...)
}

// Publish implements events.Publisher by appending to the outbox.
func (s *Store) Publish(ctx context.Context, e events.Event) error {
	return s.do(ctx, OpOutboxPublish, func(st *state) error {
		st.outbox = append(st.outbox, e)
		return nil
	})
}

// Repositories.

func (s *Store) Products() *ProductRepo   { return &ProductRepo{s: s} }
func (s *Store) Movements() *MovementRepo { return &MovementRepo{s: s} }
func (s *Store) Invoices() *InvoiceRepo   { return &InvoiceRepo{s: s} }
func (s *Store) Users() *UserRepo         { return &UserRepo{s: s} }
func (s *Store) Numerator() *Numerator    { return &Numerator{s: s} }
func (s *Store) Idempotency() *IdempotencyStore {
	return &IdempotencyStore{s: s}
}

func copyProduct(p *product.Product) *product.Product {
	c := *p
	return &c
}

func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	c := *inv
	c.Items = append([]invoice.Item(nil), inv.Items...)
	return &c
}
