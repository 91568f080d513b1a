package badger

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/ffirst2551/mercil/storage"
)

const (
	defaultSequenceBandwidth = 100

	// txnMaxAttempts bounds retries of write transactions that lose a
	// serializable-conflict race.
	txnMaxAttempts = 16
)

// Backend owns the BadgerDB handle the repositories share. It carries
// the store's embedding dimension, stamped into the database on first
// open and enforced on every subsequent open.
type Backend struct {
	db        *badger.DB
	dimension int
	logger    *slog.Logger
}

// badgerLoggerAdapter routes badger's internal logging through slog.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist. The dimension is stamped
// into the database on first open; reopening with a different dimension
// fails with storage.ErrDimensionMismatch so existing vectors are never
// mixed with a reconfigured model.
func OpenBackend(filePath string, dimension int, inMemory bool) (*Backend, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}

	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// The path must be a directory; create it when missing.
		info, err := os.Stat(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(filePath, 0755); err != nil {
					return nil, err
				}
				info, err = os.Stat(filePath)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		opts = badger.DefaultOptions(filePath)
	}

	opts.Logger = &badgerLoggerAdapter{logger: slog.Default()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		db:        db,
		dimension: dimension,
		logger:    slog.Default(),
	}

	if err := b.checkDimensionStamp(); err != nil {
		db.Close()
		return nil, err
	}

	return b, nil
}

// Close releases the underlying database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed reports whether the database has been closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// Dimension returns the embedding dimension the store was created with.
func (b *Backend) Dimension() int {
	return b.dimension
}

// WithTx runs fn inside a BadgerDB transaction, read-write when isWrite
// is set. Committing is fn's job; the deferred discard only cleans up
// after an error.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// WithTxRetry executes fn in a read-write transaction, retrying when the
// commit loses a serializable-conflict race with a concurrent writer.
// fn must be safe to run more than once.
func (b *Backend) WithTxRetry(fn func(tx *badger.Txn) error) error {
	for attempt := 1; ; attempt++ {
		err := b.WithTx(fn, true)
		if err == nil || !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if attempt >= txnMaxAttempts {
			return fmt.Errorf("%w: gave up after %d conflicts", storage.ErrTransactionFailed, attempt)
		}
		// Jitter so colliding writers don't retry in lockstep.
		time.Sleep(time.Duration(rand.IntN(4)+1) * time.Millisecond)
	}
}

// GetSequence hands out a named BadgerDB sequence for ID generation.
func (b *Backend) GetSequence(name string) (*badger.Sequence, error) {
	return b.db.GetSequence([]byte(name), defaultSequenceBandwidth)
}

// checkDimensionStamp validates the stored dimension stamp against the
// configured dimension, writing the stamp when none exists yet.
func (b *Backend) checkDimensionStamp() error {
	return b.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(metaDimensionKey))
		if err == badger.ErrKeyNotFound {
			if err := tx.Set([]byte(metaDimensionKey), storage.MarshalUint64(uint64(b.dimension))); err != nil {
				return err
			}
			return tx.Commit()
		}
		if err != nil {
			return err
		}

		var stored uint64
		if err := item.Value(func(val []byte) error {
			var decodeErr error
			stored, decodeErr = storage.UnmarshalUint64(val)
			return decodeErr
		}); err != nil {
			return err
		}
		if int(stored) != b.dimension {
			return fmt.Errorf("%w: store was created with dimension %d, configured %d",
				storage.ErrDimensionMismatch, stored, b.dimension)
		}
		return nil
	}, true)
}
