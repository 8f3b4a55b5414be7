package registry

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/searchnet/chainreg/logging"
	"github.com/searchnet/chainreg/shared"
	"github.com/searchnet/chainreg/signing"
)

// recommendLimit is the number of records returned by Recommend.
const recommendLimit = 10

// Registry is the verifiable service registry. It keeps a durable record
// per named service plus the head of the service's signed audit chain, and
// advances that chain through optimistic-concurrency commits.
//
// The registry performs no internal locking: the host environment is
// expected to sequence commands, and the previous-root check in Commit
// defends against stale writers (a compare-and-swap on the root hash).
type Registry struct {
	db       *database
	clock    Clock
	verifier signing.Verifier
	ledger   RewardLedger
	sink     EventSink
}

type newRegistryOptionFunc func(*Registry)

// WithClock overrides the system clock. Tests pass fixed clocks here
// instead of mutating any global state.
func WithClock(clock Clock) newRegistryOptionFunc {
	return func(r *Registry) {
		r.clock = clock
	}
}

func New(
	dbPath string,
	verifier signing.Verifier,
	ledger RewardLedger,
	sink EventSink,
	opts ...newRegistryOptionFunc,
) (*Registry, error) {
	db, err := newDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening registry database: %w", err)
	}
	r := &Registry{
		db:       db,
		clock:    systemClock{},
		verifier: verifier,
		ledger:   ledger,
		sink:     sink,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Registry) Close() error {
	return r.db.Close()
}

// Register creates a service record and its empty chain head.
func (r *Registry) Register(ctx context.Context, caller, name, endpoint []byte, tags [][]byte) error {
	exists, err := r.db.HasService(name)
	if err != nil {
		return fmt.Errorf("checking service existence: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %q", ErrNameExists, name)
	}
	if len(tags) > MaxServiceTags {
		return fmt.Errorf("%w: %d > %d", ErrTagsOverflow, len(tags), MaxServiceTags)
	}

	now, err := epochMillis(r.clock.Now())
	if err != nil {
		return err
	}

	record := &ServiceRecord{
		Owner:        caller,
		Name:         name,
		Endpoint:     endpoint,
		Tags:         tags,
		RegisteredAt: now,
		Heat:         0,
	}
	head := &CommitHead{
		Owner:     caller,
		RootHash:  nil,
		UpdatedAt: now,
	}
	if err := r.db.CreateService(record, head); err != nil {
		return err
	}

	registeredMetric.Inc()
	logging.FromContext(ctx).Info("registered service",
		zap.ByteString("name", name),
		zap.Binary("owner", caller),
		zap.Int("tags", len(tags)),
	)
	return nil
}

// Commit advances the audit chain of a service by one signed batch.
//
// Everything is validated against an immutable read of both stores;
// only then are the new head and heat applied, in a single atomic
// write. A validation failure leaves no trace in either store.
func (r *Registry) Commit(
	ctx context.Context,
	caller, name []byte,
	batch []shared.SignedEntry,
	newRoot shared.RootHash,
	prevRoot *shared.RootHash,
) error {
	if err := r.commit(ctx, caller, name, batch, newRoot, prevRoot); err != nil {
		commitFailuresMetric.Inc()
		return err
	}
	commitsMetric.Inc()
	return nil
}

func (r *Registry) commit(
	ctx context.Context,
	caller, name []byte,
	batch []shared.SignedEntry,
	newRoot shared.RootHash,
	prevRoot *shared.RootHash,
) error {
	head, err := r.db.GetHead(name)
	if err != nil {
		return err
	}
	if !bytes.Equal(head.Owner, caller) {
		return fmt.Errorf("%w: %q", ErrPermissionDenied, name)
	}
	if !rootMatches(head.RootHash, prevRoot) {
		return fmt.Errorf("%w: %q", ErrRootHashMismatch, name)
	}

	anchor, err := chainAnchor(head.UpdatedAt)
	if err != nil {
		return err
	}
	if err := validateBatch(batch, anchor, r.verifier); err != nil {
		return err
	}

	reward, err := rewardAmount(len(batch))
	if err != nil {
		return err
	}

	record, err := r.db.GetService(name)
	if err != nil {
		return err
	}

	now, err := epochMillis(r.clock.Now())
	if err != nil {
		return err
	}

	head.RootHash = newRoot[:]
	head.UpdatedAt = now
	record.Heat = uint64(len(batch))
	if err := r.db.ApplyCommit(record, head); err != nil {
		return err
	}

	heatMetric.WithLabelValues(serviceLabel(name)).Set(float64(record.Heat))
	logging.FromContext(ctx).Info("chain advanced",
		zap.ByteString("name", name),
		zap.Stringer("root", newRoot),
		zap.Uint64("heat", record.Heat),
		zap.Int64("updated_at", now),
	)

	r.sink.Publish(ctx, ChainAdvanced{
		Service:   name,
		Root:      newRoot,
		UpdatedAt: now,
	})

	if err := r.ledger.Credit(ctx, caller, reward); err != nil {
		return fmt.Errorf("%w: crediting %d to owner of %q: %v", ErrRewardTransfer, reward, name, err)
	}
	return nil
}

// Recommend returns up to 10 records in registry iteration order.
// The order is storage-defined, not a ranking.
func (r *Registry) Recommend(ctx context.Context) ([]*ServiceRecord, error) {
	records := make([]*ServiceRecord, 0, recommendLimit)
	err := r.db.IterServices(func(record *ServiceRecord) bool {
		records = append(records, record)
		return len(records) < recommendLimit
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// FindByTags returns every record whose tag set contains all target tags.
// Empty targets match every record.
func (r *Registry) FindByTags(ctx context.Context, targets [][]byte) ([]*ServiceRecord, error) {
	var records []*ServiceRecord
	err := r.db.IterServices(func(record *ServiceRecord) bool {
		if hasAllTags(record.Tags, targets) {
			records = append(records, record)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetByName returns the record registered under name, or ErrNotFound.
func (r *Registry) GetByName(ctx context.Context, name []byte) (*ServiceRecord, error) {
	return r.db.GetService(name)
}

// Head returns the current audit chain head of a service.
func (r *Registry) Head(ctx context.Context, name []byte) (*CommitHead, error) {
	return r.db.GetHead(name)
}

// rootMatches implements the optimistic-concurrency check: the caller's
// claimed previous root must equal the stored one, where a nil claim
// stands for "no commit yet".
func rootMatches(stored []byte, claimed *shared.RootHash) bool {
	if claimed == nil {
		return len(stored) == 0
	}
	return bytes.Equal(stored, claimed[:])
}

func hasAllTags(tags, targets [][]byte) bool {
	for _, target := range targets {
		if slices.IndexFunc(tags, func(tag []byte) bool { return bytes.Equal(tag, target) }) < 0 {
			return false
		}
	}
	return true
}

// serviceLabel renders a service name as a metric label value. Names are
// arbitrary bytes while prometheus rejects label values that are not
// valid UTF-8, so those are hex encoded.
func serviceLabel(name []byte) string {
	if utf8.Valid(name) {
		return string(name)
	}
	return hex.EncodeToString(name)
}

func epochMillis(t time.Time) (int64, error) {
	millis := t.UnixMilli()
	if millis < 0 {
		return 0, fmt.Errorf("%w: %v", ErrTimestampConversion, t)
	}
	return millis, nil
}

// chainAnchor converts the stored head time to the unsigned anchor the
// validator compares embedded entry timestamps against.
func chainAnchor(updatedAt int64) (uint64, error) {
	if updatedAt < 0 {
		return 0, fmt.Errorf("%w: %d", ErrTimestampConversion, updatedAt)
	}
	return uint64(updatedAt), nil
}

func rewardAmount(batchLen int) (uint64, error) {
	if uint64(batchLen) > math.MaxUint64/RewardPerHeat {
		return 0, fmt.Errorf("%w: batch of %d", ErrBalanceConversion, batchLen)
	}
	return uint64(batchLen) * RewardPerHeat, nil
}
