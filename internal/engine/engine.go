package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/FgForrest/evitaDB-sub062/internal/cdc"
	"github.com/FgForrest/evitaDB-sub062/internal/config"
	"github.com/FgForrest/evitaDB-sub062/internal/executor"
	"github.com/FgForrest/evitaDB-sub062/internal/metrics"
	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
	"github.com/FgForrest/evitaDB-sub062/internal/operator"
	"github.com/FgForrest/evitaDB-sub062/internal/progress"
	"github.com/FgForrest/evitaDB-sub062/internal/state"
	"github.com/FgForrest/evitaDB-sub062/internal/store"
	"github.com/FgForrest/evitaDB-sub062/internal/txn"
)

// Engine owns the working state, the persistence layer and the transaction
// manager that changes them.
type Engine struct {
	cfg    config.Config
	logger *slog.Logger

	current atomic.Pointer[state.Expanded]

	store    *store.Store
	pool     *executor.Pool
	observer *cdc.Observer
	manager  *txn.Manager

	closeOnce sync.Once
	closeErr  error
}

type options struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	ids        txn.IDGenerator
	now        func() time.Time
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the engine metrics on r. Without it the metrics
// are collected but not exported.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithIDGenerator replaces the transaction id generator.
func WithIDGenerator(g txn.IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithClock sets the clock used to stamp committed transactions.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Open starts the engine stored under cfg.Storage.Directory.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	dir := cfg.Storage.Directory
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	storeOpts := []store.Option{store.WithLogger(o.logger)}
	if o.now != nil {
		storeOpts = append(storeOpts, store.WithClock(o.now))
	}
	st, err := store.Open(cfg.DatabasePath(), storeOpts...)
	if err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, logger: o.logger, store: st}
	if err := e.bootstrap(ctx, o); err != nil {
		e.abort()
		return nil, err
	}
	return e, nil
}

func (e *Engine) bootstrap(ctx context.Context, o options) error {
	es, err := e.store.LoadEngineState(ctx)
	if err != nil {
		return err
	}
	if es == nil {
		empty := state.EmptyEngineState()
		es = &empty
	}

	catalogs, err := loadCatalogs(e.cfg.Storage.Directory, *es, e.logger)
	if err != nil {
		return err
	}
	e.current.Store(state.NewExpanded(*es, catalogs))

	e.pool, err = executor.New(e.cfg.Executor.Workers, e.logger)
	if err != nil {
		return err
	}
	e.observer = cdc.NewObserver(e.logger)

	managerOpts := []txn.Option{
		txn.WithTimeout(e.cfg.Server.TransactionTimeout.Std()),
		txn.WithLogger(e.logger),
		txn.WithMetrics(metrics.New(o.registerer)),
	}
	if o.ids != nil {
		managerOpts = append(managerOpts, txn.WithIDGenerator(o.ids))
	}
	e.manager, err = txn.NewManager(ctx, e, e.store, e.observer, e.pool, e.cfg.Storage.Directory, managerOpts...)
	if err != nil {
		return err
	}

	e.logger.Info("engine started",
		"version", es.Version,
		"catalogs", len(catalogs),
		"storage", e.cfg.Storage.Directory,
	)
	return nil
}

// abort releases what a failed Open already started.
func (e *Engine) abort() {
	if e.pool != nil {
		_ = e.pool.Release(time.Second)
	}
	if e.observer != nil {
		e.observer.Close()
	}
	_ = e.store.Close()
}

// loadCatalogs reads the descriptor of every durable catalog below dir and
// settles it in the state the durable engine state records. Changes of
// interrupted mutations are reverted first; folders the durable state does
// not know are removed.
func loadCatalogs(dir string, es state.EngineState, logger *slog.Logger) ([]state.Catalog, error) {
	durable := es.CatalogNames()
	isDurable := func(name string) bool { return slices.Contains(durable, name) }
	if err := operator.Recover(dir, isDurable, logger); err != nil {
		return nil, fmt.Errorf("failed to recover interrupted catalog changes: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage directory: %w", err)
	}

	found := make(map[string]bool, len(durable))
	var catalogs []state.Catalog
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if operator.IsParkedDir(entry) {
			logger.Warn("removing parked catalog left by an interrupted mutation", "dir", path)
			if err := os.RemoveAll(path); err != nil {
				logger.Error("failed to remove parked catalog", "dir", path, "error", err)
			}
			continue
		}
		if !operator.IsCatalogDir(entry) {
			continue
		}

		c, err := operator.ReadDescriptor(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.Debug("skipping directory without catalog descriptor", "dir", path)
				continue
			}
			return nil, err
		}
		name := entry.Name()
		if !isDurable(name) {
			logger.Warn("removing catalog folder not present in the engine state", "dir", path)
			if err := os.RemoveAll(path); err != nil {
				return nil, fmt.Errorf("failed to remove catalog folder %s: %w", path, err)
			}
			continue
		}
		if c.Name != name {
			logger.Warn("catalog descriptor names another catalog", "dir", path, "descriptor", c.Name)
			c.Name = name
		}

		if es.IsActive(name) {
			c = c.Settle(c.ActiveState())
		} else {
			c = c.Settle(state.Inactive)
		}
		c.Mutable = !es.IsReadOnly(name)
		found[name] = true
		catalogs = append(catalogs, c)
	}

	var missing []string
	for _, name := range durable {
		if !found[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("catalogs %v recorded in engine state %d are missing from %s",
			missing, es.Version, dir)
	}
	return catalogs, nil
}

// Config returns the configuration the engine was opened with.
func (e *Engine) Config() config.Config {
	return e.cfg
}

// State returns the current working state.
func (e *Engine) State() *state.Expanded {
	return e.current.Load()
}

// SetNextState installs next as the working state.
func (e *Engine) SetNextState(next *state.Expanded) {
	e.current.Store(next)
}

// LastStoredVersion returns the last durable engine version.
func (e *Engine) LastStoredVersion() int64 {
	return e.manager.LastStoredVersion()
}

// Apply submits m to the transaction manager. See txn.Manager.ApplyMutation.
func (e *Engine) Apply(ctx context.Context, m mutation.EngineMutation, observer progress.Observer) (*progress.Progress[mutation.Result], error) {
	return e.manager.ApplyMutation(ctx, m, observer)
}

// MutationProgress returns the progress of the mutation currently running
// for the named catalog.
func (e *Engine) MutationProgress(catalogName string) (progress.Handle, bool) {
	return e.manager.EngineMutationProgress(catalogName)
}

// CommittedMutations streams committed mutations from version on.
func (e *Engine) CommittedMutations(ctx context.Context, version int64) (mutation.Stream, error) {
	return e.manager.CommittedMutationStream(ctx, version)
}

// ReversedCommittedMutations streams committed mutations newest first, from
// version or from the latest one when version is nil.
func (e *Engine) ReversedCommittedMutations(ctx context.Context, version *int64) (mutation.Stream, error) {
	return e.manager.ReversedCommittedMutationStream(ctx, version)
}

// Subscribe receives every mutation committed from now on. See
// cdc.Observer.Subscribe.
func (e *Engine) Subscribe(buffer int) *cdc.Subscription {
	return e.observer.Subscribe(buffer)
}

// Close waits up to the configured shutdown timeout for running mutations,
// then stops the worker pool and closes the database.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		timeout := e.cfg.Server.ShutdownTimeout.Std()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var errs []error
		if err := e.manager.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := e.pool.Release(timeout); err != nil {
			errs = append(errs, err)
		}
		e.observer.Close()
		e.closeErr = errors.Join(errs...)
		e.logger.Info("engine stopped", "version", e.manager.LastStoredVersion())
	})
	return e.closeErr
}
