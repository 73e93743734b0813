package reldb

import (
	"go.uber.org/zap"
)

// Engine is the process-wide handle a caller holds: the table
// catalog, the shared buffer pool (and, through it, the lock manager),
// the active configuration, and a logger. Nothing in the core reaches
// for a package-level global to get at any of these; everything is
// threaded through an Engine (or the HeapFile/BufferPool it built),
// per the single-process embedding model the external interfaces
// describe.
type Engine struct {
	Config  EngineConfig
	Catalog *Catalog
	Pool    *BufferPool
	Log     *zap.SugaredLogger
}

// NewEngine builds an Engine from cfg, applying cfg's page/string size
// to the package-level wire-format constants before anything else
// touches them.
func NewEngine(cfg EngineConfig, logger *zap.SugaredLogger) *Engine {
	cfg.Apply()
	if logger == nil {
		logger = newNopLogger()
	}
	catalog := NewCatalog()
	pool := NewBufferPool(cfg.BufferPoolPages, catalog, cfg.LockTimeout)
	pool.SetLogger(logger)
	return &Engine{
		Config:  cfg,
		Catalog: catalog,
		Pool:    pool,
		Log:     logger,
	}
}

// OpenTable opens or creates a heap file at path with schema td and
// registers it in the engine's catalog under name, with no declared
// primary key. Callers that know the key use Catalog.AddTable
// directly.
func (e *Engine) OpenTable(name, path string, td *TupleDesc) (*HeapFile, error) {
	f, err := NewHeapFile(path, td, e.Pool)
	if err != nil {
		return nil, err
	}
	e.Catalog.AddTable(name, f, "")
	return f, nil
}

// NewTransaction allocates a fresh TransactionId and registers it with
// the buffer pool.
func (e *Engine) NewTransaction() (TransactionId, error) {
	tid := NewTransactionId()
	if err := e.Pool.BeginTransaction(tid); err != nil {
		return 0, err
	}
	return tid, nil
}

func (e *Engine) Commit(tid TransactionId) error {
	return e.Pool.CommitTransaction(tid)
}

func (e *Engine) Abort(tid TransactionId) error {
	return e.Pool.AbortTransaction(tid)
}
