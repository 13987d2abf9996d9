package test

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/payledger/internal/domain/errors"
	"github.com/polkiloo/payledger/internal/domain/model"
	"github.com/polkiloo/payledger/internal/domain/repository"
)

type balanceKey struct {
	userID   string
	currency string
}

type memoryState struct {
	users        map[string]model.UserContact
	balances     map[balanceKey]model.Balance
	holds        map[string]model.Hold
	withdrawals  map[string]model.Withdrawal
	transactions []model.Transaction
	refunds      map[string]model.Refund
	audit        []model.AuditEntry
}

func newMemoryState() memoryState {
	return memoryState{
		users:       make(map[string]model.UserContact),
		balances:    make(map[balanceKey]model.Balance),
		holds:       make(map[string]model.Hold),
		withdrawals: make(map[string]model.Withdrawal),
		refunds:     make(map[string]model.Refund),
	}
}

func (s memoryState) clone() memoryState {
	c := memoryState{
		users:        maps.Clone(s.users),
		balances:     maps.Clone(s.balances),
		holds:        maps.Clone(s.holds),
		withdrawals:  maps.Clone(s.withdrawals),
		transactions: append([]model.Transaction(nil), s.transactions...),
		refunds:      maps.Clone(s.refunds),
		audit:        append([]model.AuditEntry(nil), s.audit...),
	}
	return c
}

type failure struct {
	err   error
	times int
}

type memoryTxKey struct{}

// MemoryStore is an in-memory repository.Factory. A transaction that returns an
// error or panics restores the state it started from. Transactions are serialised.
type MemoryStore struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	state memoryState

	calls    map[string]int
	failures map[string]*failure

	// Now stamps created and updated times.
	Now func() time.Time
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state:    newMemoryState(),
		calls:    make(map[string]int),
		failures: make(map[string]*failure),
		Now:      time.Now,
	}
}

var _ repository.Factory = (*MemoryStore)(nil)

// WithinTransaction runs fn atomically with respect to other transactions.
func (s *MemoryStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(memoryTxKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.state.clone()
	s.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()

	return fn(context.WithValue(ctx, memoryTxKey{}, true))
}

func (s *MemoryStore) restore(snapshot memoryState) {
	s.mu.Lock()
	s.state = snapshot
	s.mu.Unlock()
}

// Fail makes op return err for the next times calls. times <= 0 fails forever.
// Operations are named "<repository>.<Method>", e.g. "withdrawals.Transition".
func (s *MemoryStore) Fail(op string, err error, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = &failure{err: err, times: times}
}

// Calls returns how many times op ran. An empty op counts every call.
func (s *MemoryStore) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op != "" {
		return s.calls[op]
	}
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// enter locks the store, counts op and returns an injected failure, if any.
// The caller must unlock.
func (s *MemoryStore) enter(op string) error {
	s.mu.Lock()
	s.calls[op]++
	f, ok := s.failures[op]
	if !ok {
		return nil
	}
	if f.times > 0 {
		f.times--
		if f.times == 0 {
			delete(s.failures, op)
		}
	}
	return f.err
}

// AddUser registers a user contact.
func (s *MemoryStore) AddUser(id, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[id] = model.UserContact{ID: id, Email: email}
}

// SetBalance overwrites a balance row.
func (s *MemoryStore) SetBalance(userID, currency string, available, held decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Now()
	s.state.balances[balanceKey{userID, currency}] = model.Balance{
		UserID: userID, Currency: currency, Available: available, Held: held, CreatedAt: now, UpdatedAt: now,
	}
}

// BalanceOf returns a balance row and whether it exists.
func (s *MemoryStore) BalanceOf(userID, currency string) (model.Balance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.state.balances[balanceKey{userID, currency}]
	return b, ok
}

// AllBalances returns every balance row.
func (s *MemoryStore) AllBalances() []model.Balance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Balance, 0, len(s.state.balances))
	for _, b := range s.state.balances {
		out = append(out, b)
	}
	return out
}

// PutWithdrawal stores w as is, filling id and timestamps when missing.
func (s *MemoryStore) PutWithdrawal(w model.Withdrawal) model.Withdrawal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = s.Now()
	}
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = w.CreatedAt
	}
	s.state.withdrawals[w.ID] = w
	return w
}

// WithdrawalByID returns a stored withdrawal.
func (s *MemoryStore) WithdrawalByID(id string) (model.Withdrawal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.state.withdrawals[id]
	return w, ok
}

// PutHold stores h as is, filling id and creation time when missing.
func (s *MemoryStore) PutHold(h model.Hold) model.Hold {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = s.Now()
	}
	s.state.holds[h.ID] = h
	return h
}

// HoldByID returns a stored hold.
func (s *MemoryStore) HoldByID(id string) (model.Hold, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.state.holds[id]
	return h, ok
}

// LedgerEntries returns stored transactions of userID in insertion order.
func (s *MemoryStore) LedgerEntries(userID string) []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Transaction
	for _, t := range s.state.transactions {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

// RefundEntries returns every stored refund.
func (s *MemoryStore) RefundEntries() []model.Refund {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Refund, 0, len(s.state.refunds))
	for _, r := range s.state.refunds {
		out = append(out, r)
	}
	return out
}

// AuditEntries returns the trail of a withdrawal in insertion order.
func (s *MemoryStore) AuditEntries(withdrawalID string) []model.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AuditEntry
	for _, e := range s.state.audit {
		if e.WithdrawalID == withdrawalID {
			out = append(out, e)
		}
	}
	return out
}

func (s *MemoryStore) Users() repository.UserDirectory                { return memoryUsers{s} }
func (s *MemoryStore) Balances() repository.BalanceRepository         { return memoryBalances{s} }
func (s *MemoryStore) Holds() repository.HoldRepository               { return memoryHolds{s} }
func (s *MemoryStore) Withdrawals() repository.WithdrawalRepository   { return memoryWithdrawals{s} }
func (s *MemoryStore) Transactions() repository.TransactionRepository { return memoryTransactions{s} }
func (s *MemoryStore) Refunds() repository.RefundRepository           { return memoryRefunds{s} }
func (s *MemoryStore) Audit() repository.AuditRepository              { return memoryAudit{s} }

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Contact(_ context.Context, userID string) (*model.UserContact, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("users.Contact"); err != nil {
		return nil, err
	}
	c, ok := r.s.state.users[userID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &c, nil
}

type memoryBalances struct{ s *MemoryStore }

func (r memoryBalances) Get(_ context.Context, userID, currency string) (*model.Balance, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("balances.Get"); err != nil {
		return nil, err
	}
	b, ok := r.s.state.balances[balanceKey{userID, currency}]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &b, nil
}

func (r memoryBalances) ListByUser(_ context.Context, userID string) ([]model.Balance, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("balances.ListByUser"); err != nil {
		return nil, err
	}
	out := []model.Balance{}
	for k, b := range r.s.state.balances {
		if k.userID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

func (r memoryBalances) Credit(_ context.Context, userID, currency string, amount decimal.Decimal) (*model.Balance, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("balances.Credit"); err != nil {
		return nil, err
	}
	key := balanceKey{userID, currency}
	now := r.s.Now()
	b, ok := r.s.state.balances[key]
	if !ok {
		b = model.Balance{UserID: userID, Currency: currency, CreatedAt: now}
	}
	b.Available = b.Available.Add(amount)
	b.UpdatedAt = now
	r.s.state.balances[key] = b
	return &b, nil
}

func (r memoryBalances) AddAvailable(_ context.Context, userID, currency string, amount decimal.Decimal) (*model.Balance, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("balances.AddAvailable"); err != nil {
		return nil, err
	}
	key := balanceKey{userID, currency}
	b, ok := r.s.state.balances[key]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	b.Available = b.Available.Add(amount)
	b.UpdatedAt = r.s.Now()
	r.s.state.balances[key] = b
	return &b, nil
}

// apply runs a conditional move on one row. move reports false when funds do not cover it.
func (r memoryBalances) apply(op, userID, currency string, move func(b *model.Balance) bool) (repository.DebitResult, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter(op); err != nil {
		return repository.DebitResult{}, err
	}
	key := balanceKey{userID, currency}
	b, ok := r.s.state.balances[key]
	if !ok || !move(&b) {
		return repository.Insufficient(), nil
	}
	b.UpdatedAt = r.s.Now()
	r.s.state.balances[key] = b
	return repository.Applied(&b), nil
}

func (r memoryBalances) DebitAvailable(_ context.Context, userID, currency string, amount decimal.Decimal) (repository.DebitResult, error) {
	return r.apply("balances.DebitAvailable", userID, currency, func(b *model.Balance) bool {
		if b.Available.LessThan(amount) {
			return false
		}
		b.Available = b.Available.Sub(amount)
		return true
	})
}

func (r memoryBalances) MoveToHeld(_ context.Context, userID, currency string, amount decimal.Decimal) (repository.DebitResult, error) {
	return r.apply("balances.MoveToHeld", userID, currency, func(b *model.Balance) bool {
		if b.Available.LessThan(amount) {
			return false
		}
		b.Available = b.Available.Sub(amount)
		b.Held = b.Held.Add(amount)
		return true
	})
}

func (r memoryBalances) ReleaseHeld(_ context.Context, userID, currency string, amount decimal.Decimal) (repository.DebitResult, error) {
	return r.apply("balances.ReleaseHeld", userID, currency, func(b *model.Balance) bool {
		if b.Held.LessThan(amount) {
			return false
		}
		b.Held = b.Held.Sub(amount)
		b.Available = b.Available.Add(amount)
		return true
	})
}

func (r memoryBalances) ConsumeHeld(_ context.Context, userID, currency string, amount decimal.Decimal) (repository.DebitResult, error) {
	return r.apply("balances.ConsumeHeld", userID, currency, func(b *model.Balance) bool {
		if b.Held.LessThan(amount) {
			return false
		}
		b.Held = b.Held.Sub(amount)
		return true
	})
}

type memoryHolds struct{ s *MemoryStore }

func (r memoryHolds) Create(_ context.Context, hold model.Hold) (*model.Hold, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("holds.Create"); err != nil {
		return nil, err
	}
	if hold.ID == "" {
		hold.ID = uuid.NewString()
	}
	hold.CreatedAt = r.s.Now()
	r.s.state.holds[hold.ID] = hold
	return &hold, nil
}

func (r memoryHolds) Get(_ context.Context, id string) (*model.Hold, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("holds.Get"); err != nil {
		return nil, err
	}
	h, ok := r.s.state.holds[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &h, nil
}

func (r memoryHolds) Release(_ context.Context, id, userID string) (*model.Hold, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("holds.Release"); err != nil {
		return nil, err
	}
	h, ok := r.s.state.holds[id]
	if !ok || h.UserID != userID || h.Status != model.HoldStatusActive {
		return nil, domainErrors.ErrStaleState
	}
	now := r.s.Now()
	h.Status = model.HoldStatusReleased
	h.ReleasedAt = &now
	r.s.state.holds[id] = h
	return &h, nil
}

func (r memoryHolds) ListActiveByUser(_ context.Context, userID string) ([]model.Hold, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("holds.ListActiveByUser"); err != nil {
		return nil, err
	}
	out := []model.Hold{}
	for _, h := range r.s.state.holds {
		if h.UserID == userID && h.Status == model.HoldStatusActive {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type memoryWithdrawals struct{ s *MemoryStore }

func (r memoryWithdrawals) Create(_ context.Context, w model.Withdrawal) (*model.Withdrawal, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("withdrawals.Create"); err != nil {
		return nil, err
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if _, exists := r.s.state.withdrawals[w.ID]; exists {
		return nil, domainErrors.ErrAlreadyExists
	}
	w.CreatedAt = r.s.Now()
	w.UpdatedAt = w.CreatedAt
	r.s.state.withdrawals[w.ID] = w
	return &w, nil
}

func (r memoryWithdrawals) Get(_ context.Context, id string) (*model.Withdrawal, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("withdrawals.Get"); err != nil {
		return nil, err
	}
	w, ok := r.s.state.withdrawals[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &w, nil
}

func (r memoryWithdrawals) Transition(_ context.Context, id string, from, to model.WithdrawalStatus, patch repository.WithdrawalPatch) (*model.Withdrawal, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("withdrawals.Transition"); err != nil {
		return nil, err
	}
	w, ok := r.s.state.withdrawals[id]
	if !ok || w.Status != from {
		return nil, domainErrors.ErrStaleState
	}
	w.Status = to
	if patch.ExternalPayoutID != "" {
		w.ExternalPayoutID = patch.ExternalPayoutID
	}
	if patch.FailureReason != "" {
		w.FailureReason = patch.FailureReason
	}
	w.UpdatedAt = r.s.Now()
	r.s.state.withdrawals[id] = w
	return &w, nil
}

func (r memoryWithdrawals) byStatus(status model.WithdrawalStatus, keep func(model.Withdrawal) bool, limit int) []model.Withdrawal {
	out := []model.Withdrawal{}
	for _, w := range r.s.state.withdrawals {
		if w.Status == status && keep(w) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r memoryWithdrawals) ListPending(_ context.Context, limit int) ([]model.Withdrawal, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("withdrawals.ListPending"); err != nil {
		return nil, err
	}
	return r.byStatus(model.WithdrawalStatusPending, func(model.Withdrawal) bool { return true }, limit), nil
}

func (r memoryWithdrawals) ClaimStaleProcessing(_ context.Context, olderThan time.Duration, limit int) ([]model.Withdrawal, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("withdrawals.ClaimStaleProcessing"); err != nil {
		return nil, err
	}
	now := r.s.Now()
	cutoff := now.Add(-olderThan)
	claimed := r.byStatus(model.WithdrawalStatusProcessing, func(w model.Withdrawal) bool {
		return w.UpdatedAt.Before(cutoff)
	}, limit)
	for _, w := range claimed {
		w.UpdatedAt = now
		r.s.state.withdrawals[w.ID] = w
	}
	return claimed, nil
}

type memoryTransactions struct{ s *MemoryStore }

func (r memoryTransactions) Append(_ context.Context, tx model.Transaction) (*model.Transaction, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("transactions.Append"); err != nil {
		return nil, err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	tx.CreatedAt = r.s.Now()
	r.s.state.transactions = append(r.s.state.transactions, tx)
	return &tx, nil
}

func (r memoryTransactions) List(_ context.Context, userID string, f model.TransactionFilter) ([]model.Transaction, int, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("transactions.List"); err != nil {
		return nil, 0, err
	}
	var matched []model.Transaction
	for i := len(r.s.state.transactions) - 1; i >= 0; i-- {
		t := r.s.state.transactions[i]
		switch {
		case t.UserID != userID:
		case f.Currency != "" && t.Currency != f.Currency:
		case f.Type != "" && t.Type != f.Type:
		case f.From != nil && t.CreatedAt.Before(*f.From):
		case f.To != nil && t.CreatedAt.After(*f.To):
		default:
			matched = append(matched, t)
		}
	}

	page := []model.Transaction{}
	start := f.Offset()
	if start < len(matched) {
		end := len(matched)
		if f.Limit > 0 && start+f.Limit < end {
			end = start + f.Limit
		}
		page = append(page, matched[start:end]...)
	}
	return page, len(matched), nil
}

type memoryRefunds struct{ s *MemoryStore }

func (r memoryRefunds) Create(_ context.Context, refund model.Refund) (*model.Refund, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("refunds.Create"); err != nil {
		return nil, err
	}
	if _, exists := r.s.state.refunds[refund.WithdrawalRef]; exists {
		return nil, domainErrors.ErrAlreadyExists
	}
	if refund.ID == "" {
		refund.ID = uuid.NewString()
	}
	refund.CreatedAt = r.s.Now()
	r.s.state.refunds[refund.WithdrawalRef] = refund
	return &refund, nil
}

func (r memoryRefunds) GetByWithdrawal(_ context.Context, withdrawalRef string) (*model.Refund, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("refunds.GetByWithdrawal"); err != nil {
		return nil, err
	}
	refund, ok := r.s.state.refunds[withdrawalRef]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &refund, nil
}

type memoryAudit struct{ s *MemoryStore }

func (r memoryAudit) Append(_ context.Context, entry model.AuditEntry) (*model.AuditEntry, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("audit.Append"); err != nil {
		return nil, err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.Metadata = maps.Clone(entry.Metadata)
	entry.CreatedAt = r.s.Now()
	r.s.state.audit = append(r.s.state.audit, entry)
	return &entry, nil
}

func (r memoryAudit) ListByWithdrawal(_ context.Context, withdrawalID string) ([]model.AuditEntry, error) {
	defer r.s.mu.Unlock()
	if err := r.s.enter("audit.ListByWithdrawal"); err != nil {
		return nil, err
	}
	out := []model.AuditEntry{}
	for _, e := range r.s.state.audit {
		if e.WithdrawalID == withdrawalID {
			out = append(out, e)
		}
	}
	return out, nil
}
