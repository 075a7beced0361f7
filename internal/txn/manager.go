package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/FgForrest/evitaDB-sub062/internal/metrics"
	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
	"github.com/FgForrest/evitaDB-sub062/internal/operator"
	"github.com/FgForrest/evitaDB-sub062/internal/progress"
	"github.com/FgForrest/evitaDB-sub062/internal/state"
)

// DefaultTimeout is the engine state lock wait limit used when none is set.
const DefaultTimeout = 5 * time.Second

// PersistenceService stores the WAL and the durable engine state.
type PersistenceService interface {
	AppendWal(ctx context.Context, version int64, txID uuid.UUID, m mutation.EngineMutation) (mutation.TransactionMutationWithWalFileReference, error)
	StoreEngineState(ctx context.Context, es state.EngineState) error
	TruncateWal(ctx context.Context, ref state.WalFileReference) (int64, error)
	CommittedMutationStream(ctx context.Context, version int64) (mutation.Stream, error)
	ReversedCommittedMutationStream(ctx context.Context, version *int64) (mutation.Stream, error)
	Close() error
}

// ChangeObserver is notified about committed mutations. ProcessMutation is
// called with the transaction wrapper and then the engine mutation;
// NotifyVersionPresentInLiveView follows once the version is installed.
type ChangeObserver interface {
	ProcessMutation(m mutation.Mutation)
	NotifyVersionPresentInLiveView(version int64)
}

// versionDiscarder is implemented by observers that buffer captures per
// version and must drop them when a commit is rolled back.
type versionDiscarder interface {
	DiscardVersion(version int64)
}

// Engine is the handle the manager reads and replaces the working state on.
type Engine interface {
	mutation.View
	SetNextState(next *state.Expanded)
}

// Executor runs operators asynchronously. Submit must not wait for a free
// worker; a busy executor rejects the task instead.
type Executor interface {
	Submit(task func()) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout sets how long admission waits for the engine state lock.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// WithIDGenerator replaces the UUIDv7 transaction id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(m *Manager) { m.ids = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics records admission and commit metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) { m.metrics = c }
}

// withOperators replaces the operator registry.
func withOperators(ops map[mutation.Kind]operator.Operator) Option {
	return func(m *Manager) { m.operators = ops }
}

// Manager is the engine transaction manager.
type Manager struct {
	engine      Engine
	persistence PersistenceService
	observer    ChangeObserver
	executor    Executor
	operators   map[mutation.Kind]operator.Operator
	timeout     time.Duration
	ids         IDGenerator
	logger      *slog.Logger
	metrics     *metrics.Collector

	// lock guards the engine state; weight 1 so it can be acquired with a
	// deadline.
	lock              *semaphore.Weighted
	lastStoredVersion atomic.Int64
	lastWalReference  state.WalFileReference // guarded by lock

	processed sync.Map // mutation.ConflictKey -> uuid.UUID
	current   sync.Map // catalog name -> *progress.Progress[mutation.Result]

	runCtx    context.Context
	cancelRun context.CancelFunc
	inFlight  sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewManager creates the manager for engine and truncates WAL records that
// are not covered by the engine's durable state.
func NewManager(
	ctx context.Context,
	engine Engine,
	persistence PersistenceService,
	observer ChangeObserver,
	executor Executor,
	storageDir string,
	opts ...Option,
) (*Manager, error) {
	m := &Manager{
		engine:      engine,
		persistence: persistence,
		observer:    observer,
		executor:    executor,
		operators:   operator.Registry(storageDir),
		timeout:     DefaultTimeout,
		ids:         UUIDv7Generator{},
		logger:      slog.Default(),
		lock:        semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.runCtx, m.cancelRun = context.WithCancel(context.Background())

	current := engine.State()
	m.lastStoredVersion.Store(current.Version())
	if ref := current.WalReference(); ref != nil {
		m.lastWalReference = *ref
	}
	if _, err := persistence.TruncateWal(ctx, m.lastWalReference); err != nil {
		m.cancelRun()
		return nil, fmt.Errorf("failed to truncate WAL: %w", err)
	}
	m.metrics.SetVersion(current.Version())
	return m, nil
}

// ApplyMutation admits em and dispatches it to its operator. Admission errors
// are returned directly; execution errors fail the returned Progress.
// observer may be nil.
func (m *Manager) ApplyMutation(
	ctx context.Context,
	em mutation.EngineMutation,
	observer progress.Observer,
) (*progress.Progress[mutation.Result], error) {
	kind := em.Kind().String()
	op, ok := m.operators[em.Kind()]
	if !ok {
		panic(fmt.Sprintf("no operator registered for engine mutation %s", em.Kind()))
	}

	lockCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.lock.Acquire(lockCtx, 1); err != nil {
		interrupted := errors.Is(ctx.Err(), context.Canceled)
		m.logger.Debug("engine mutation not admitted", "kind", kind, "interrupted", interrupted)
		m.metrics.Rejected(kind, metrics.ReasonTimeout)
		return nil, &TransactionTimedOutError{Timeout: m.timeout, Interrupted: interrupted, Err: err}
	}

	txID := m.ids.Generate()
	f, err := m.admit(txID, em)
	if err != nil {
		m.logger.Debug("engine mutation rejected", "kind", kind, "transaction", txID, "error", err)
		return nil, err
	}
	m.metrics.Admitted(kind)

	p := progress.New[mutation.Result](op.Name(em), observer)
	scoped, isScoped := em.(mutation.CatalogScoped)
	if isScoped {
		m.current.Store(scoped.CatalogName(), p)
	}
	p.OnTerminal(func() {
		if isScoped {
			m.current.CompareAndDelete(scoped.CatalogName(), p)
		}
		f.finalize()
	})

	if err := m.executor.Submit(func() { m.run(op, p, f) }); err != nil {
		err = fmt.Errorf("failed to dispatch engine mutation %s: %w", kind, err)
		m.metrics.Rejected(kind, metrics.ReasonExecutor)
		m.metrics.Finished(kind, metrics.OutcomeFailed)
		p.Fail(err)
		return nil, err
	}
	return p, nil
}

// admit runs the checks that need the engine state lock and registers the
// conflict keys. It releases the lock.
func (m *Manager) admit(txID uuid.UUID, em mutation.EngineMutation) (*finalizer, error) {
	defer m.lock.Release(1)
	kind := em.Kind().String()

	if m.closed.Load() {
		m.metrics.Rejected(kind, metrics.ReasonClosed)
		return nil, ErrManagerClosed
	}

	keys := em.ConflictKeys()
	for _, key := range keys {
		if holder, ok := m.processed.Load(key); ok && holder.(uuid.UUID) != txID {
			m.metrics.Rejected(kind, metrics.ReasonConflict)
			return nil, &ConflictingEngineMutationError{
				Mutation:      em.Kind(),
				Key:           key,
				TransactionID: holder.(uuid.UUID),
			}
		}
	}

	if err := em.VerifyApplicability(m.engine); err != nil {
		m.metrics.Rejected(kind, metrics.ReasonInvalid)
		return nil, &InvalidMutationError{Mutation: em.Kind(), Err: err}
	}

	f := newFinalizer(m, txID, em)
	for _, key := range keys {
		m.processed.Store(key, txID)
		f.keys = append(f.keys, key)
	}
	m.inFlight.Add(1)
	return f, nil
}

// run executes the operator on the executor.
func (m *Manager) run(op operator.Operator, p *progress.Progress[mutation.Result], f *finalizer) {
	kind := f.mutation.Kind().String()
	logger := m.logger.With("transaction", f.txID, "kind", kind)

	res, err := func() (res mutation.Result, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("operator %q panicked: %v", op.Name(f.mutation), r)
			}
		}()
		return op.Apply(m.runCtx, operator.Context{
			TransactionID: f.txID,
			Mutation:      f.mutation,
			Engine:        m.engine,
			Before:        f.before,
			After:         f.after,
			Report:        p.Report,
			Logger:        logger,
		})
	}()
	if err == nil && !f.committed.Load() {
		err = fmt.Errorf("operator %q finished without committing", op.Name(f.mutation))
	}

	if err != nil {
		if !f.committed.Load() && f.speculated.Load() {
			m.compensate(f)
		}
		logger.Warn("engine mutation failed", "error", err)
		m.metrics.Finished(kind, metrics.OutcomeFailed)
		p.Fail(err)
		return
	}

	m.metrics.Finished(kind, metrics.OutcomeCommitted)
	p.Complete(res)
}

// EngineMutationProgress returns the progress of the catalog-scoped mutation
// currently running for the named catalog.
func (m *Manager) EngineMutationProgress(catalogName string) (progress.Handle, bool) {
	v, ok := m.current.Load(catalogName)
	if !ok {
		return nil, false
	}
	return v.(*progress.Progress[mutation.Result]), true
}

// Executor returns the executor operators run on.
func (m *Manager) Executor() Executor {
	return m.executor
}

// LastStoredVersion returns the last durable engine version.
func (m *Manager) LastStoredVersion() int64 {
	return m.lastStoredVersion.Load()
}

// CommittedMutationStream streams committed mutations from version on.
func (m *Manager) CommittedMutationStream(ctx context.Context, version int64) (mutation.Stream, error) {
	return m.persistence.CommittedMutationStream(ctx, version)
}

// ReversedCommittedMutationStream streams committed mutations newest first,
// from version or from the end of the log when version is nil.
func (m *Manager) ReversedCommittedMutationStream(ctx context.Context, version *int64) (mutation.Stream, error) {
	return m.persistence.ReversedCommittedMutationStream(ctx, version)
}

// Close stops admitting new mutations, waits for in-flight ones until ctx is
// done and closes the persistence service. It returns ErrShutdownTimedOut
// when it stopped waiting early.
func (m *Manager) Close(ctx context.Context) error {
	m.closeOnce.Do(func() {
		// Admissions check closed under the lock, so none can reach
		// inFlight.Add once Wait starts.
		m.acquire()
		m.closed.Store(true)
		m.lock.Release(1)

		drained := make(chan struct{})
		go func() {
			m.inFlight.Wait()
			close(drained)
		}()

		var errs []error
		select {
		case <-drained:
		case <-ctx.Done():
			m.logger.Warn("closing engine transaction manager with mutations still running")
			errs = append(errs, ErrShutdownTimedOut)
		}
		m.cancelRun()

		if err := m.persistence.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close persistence: %w", err))
		}
		m.closeErr = errors.Join(errs...)
	})
	return m.closeErr
}
