package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rpggio/hq/internal/collection"
	"github.com/rpggio/hq/internal/domain/activity"
	"github.com/rpggio/hq/internal/remote"
	"github.com/shopspring/decimal"
)

// ErrInvalidLimit indicates a non-positive or unknown-category limit.
var ErrInvalidLimit = errors.New("invalid budget limit")

// limitConflict is the unique key limits are upserted on.
var limitConflict = []string{"owner_id", "category"}

// Store mirrors the owner's ledger and per-category monthly limits.
type Store struct {
	remote  remote.Store
	ownerID string
	txs     *collection.Collection[*Transaction]
	seq     *collection.Sequencer
	track   activity.Tracker
	loc     *time.Location
	now     func() time.Time

	mu      sync.RWMutex
	limits  map[string]decimal.Decimal
	loading bool
}

// NewStore creates a Store for ownerID. recorder and logger may be nil.
// Months are computed in time.Local until WithLocation is called.
func NewStore(rs remote.Store, ownerID string, recorder activity.Recorder, logger *slog.Logger) *Store {
	return &Store{
		remote:  rs,
		ownerID: ownerID,
		txs:     collection.New[*Transaction](),
		seq:     collection.NewSequencer(),
		track:   activity.NewTracker(recorder, logger),
		loc:     time.Local,
		now:     time.Now,
		limits:  map[string]decimal.Decimal{},
	}
}

// WithLocation sets the zone month boundaries are computed in.
func (s *Store) WithLocation(loc *time.Location) *Store {
	if loc != nil {
		s.loc = loc
	}
	return s
}

// Location returns the zone month boundaries are computed in.
func (s *Store) Location() *time.Location {
	return s.loc
}

// SetClock replaces the clock used for default transaction dates.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Load fetches transactions, newest date first, and limits concurrently.
// Each half keeps its previous value when its own fetch fails.
func (s *Store) Load(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	var wg sync.WaitGroup
	var txErr, limErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		txErr = s.txs.Load(ctx, s.fetchTransactions)
		if txErr != nil {
			txErr = s.track.Fetch(remote.Transactions, fmt.Errorf("loading transactions: %w", txErr))
		}
	}()
	go func() {
		defer wg.Done()
		limErr = s.loadLimits(ctx)
		if limErr != nil {
			limErr = s.track.Fetch(remote.BudgetLimits, fmt.Errorf("loading budget limits: %w", limErr))
		}
	}()
	wg.Wait()

	return errors.Join(txErr, limErr)
}

func (s *Store) fetchTransactions(ctx context.Context) ([]*Transaction, error) {
	rows, err := s.remote.Select(ctx, remote.Transactions, remote.Query{}.
		Where("owner_id", s.ownerID).
		OrderBy("date", true))
	if err != nil {
		return nil, err
	}
	return remote.DecodeAll[*Transaction](rows)
}

type limitRow struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

func (s *Store) loadLimits(ctx context.Context) error {
	rows, err := s.remote.Select(ctx, remote.BudgetLimits, remote.Query{}.Where("owner_id", s.ownerID))
	if err != nil {
		return err
	}
	decoded, err := remote.DecodeAll[limitRow](rows)
	if err != nil {
		return err
	}
	limits := make(map[string]decimal.Decimal, len(decoded))
	for _, l := range decoded {
		limits[l.Category] = l.Amount
	}
	s.mu.Lock()
	s.limits = limits
	s.mu.Unlock()
	return nil
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// Loading reports whether a Load is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Transactions returns the current snapshot, newest date first.
func (s *Store) Transactions() []*Transaction {
	return s.txs.Snapshot()
}

// Subscribe registers fn for every new transaction snapshot.
func (s *Store) Subscribe(fn func([]*Transaction)) (cancel func()) {
	return s.txs.Subscribe(fn)
}

// Limits returns a copy of the category limits.
func (s *Store) Limits() map[string]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(s.limits))
	for k, v := range s.limits {
		out[k] = v
	}
	return out
}

// AddTransaction records a transaction and puts it first. Nothing changes
// locally if the remote insert fails.
func (s *Store) AddTransaction(ctx context.Context, in Input) (*Transaction, error) {
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: type %q", ErrInvalidInput, in.Type)
	}
	if !KnownCategory(in.Category, in.Type) {
		return nil, fmt.Errorf("%w: %s category %q", ErrInvalidInput, in.Type, in.Category)
	}

	date := s.now()
	if in.Date != nil {
		date = *in.Date
	}
	var comment any
	if c := strings.TrimSpace(in.Comment); c != "" {
		comment = c
	}

	row, err := s.remote.Insert(ctx, remote.Transactions, remote.Row{
		"owner_id": s.ownerID,
		"amount":   in.Amount,
		"type":     string(in.Type),
		"category": in.Category,
		"comment":  comment,
		"date":     date,
	})
	if err != nil {
		return nil, s.track.Write(ctx, remote.Transactions, activity.OpInsert, "", fmt.Errorf("creating transaction: %w", err))
	}

	tx, err := remote.Decode[*Transaction](row)
	if err != nil {
		return nil, fmt.Errorf("creating transaction: %w", err)
	}
	_ = s.track.Write(ctx, remote.Transactions, activity.OpInsert, tx.ID, nil)

	s.txs.Patch(collection.Prepend(tx))
	return tx, nil
}

// DeleteTransaction removes a transaction. The local copy is dropped even
// if the remote delete fails.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	return s.seq.Do(id, func() error {
		err := s.remote.Delete(ctx, remote.Transactions, id)
		s.txs.Patch(collection.RemoveByID[*Transaction](id))
		if err != nil {
			err = fmt.Errorf("deleting transaction: %w", err)
		}
		return s.track.Write(ctx, remote.Transactions, activity.OpDelete, id, err)
	})
}

// SetLimit upserts the monthly limit for an expense category. The local
// map takes the new value whatever the remote outcome.
func (s *Store) SetLimit(ctx context.Context, category string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidLimit)
	}
	if !KnownCategory(category, Expense) {
		return fmt.Errorf("%w: category %q", ErrInvalidLimit, category)
	}

	return s.seq.Do("limit:"+category, func() error {
		_, err := s.remote.Upsert(ctx, remote.BudgetLimits, remote.Row{
			"owner_id": s.ownerID,
			"category": category,
			"amount":   amount,
		}, limitConflict)

		s.mu.Lock()
		next := make(map[string]decimal.Decimal, len(s.limits)+1)
		for k, v := range s.limits {
			next[k] = v
		}
		next[category] = amount
		s.limits = next
		s.mu.Unlock()

		if err != nil {
			err = fmt.Errorf("saving budget limit: %w", err)
		}
		return s.track.Write(ctx, remote.BudgetLimits, activity.OpUpsert, category, err)
	})
}

// MonthTransactions returns the transactions dated in the given month.
// month0 is zero-based.
func (s *Store) MonthTransactions(year, month0 int) []*Transaction {
	return MonthTransactions(s.Transactions(), year, month0, s.loc)
}

// MonthStats totals the given month.
func (s *Store) MonthStats(year, month0 int) MonthStats {
	return ComputeMonthStats(s.Transactions(), year, month0, s.loc)
}

// CategorySpend sums expenses per category for the given month.
func (s *Store) CategorySpend(year, month0 int) map[string]decimal.Decimal {
	return CategorySpend(s.MonthTransactions(year, month0))
}

// Report builds the month view against the previous month and the current
// limits.
func (s *Store) Report(year, month0 int, topN int) Report {
	return BuildReport(s.Transactions(), s.Limits(), year, month0, topN, s.loc)
}
