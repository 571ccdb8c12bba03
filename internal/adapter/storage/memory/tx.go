// Package memory holds map-backed implementations of every storage port.
// It serves storage.driver=memory and end-to-end tests. State is lost on exit.
package memory

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Transactor implements ports.DBTransactor. Transactions are serialised by a
// single lock, which stands in for row locks; writes apply on Commit.
type Transactor struct {
	mu sync.Mutex
}

// NewTransactor creates an in-memory transactor.
func NewTransactor() *Transactor {
	return &Transactor{}
}

// Begin blocks until no other transaction is open, or ctx is done.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	acquired := make(chan struct{})
	go func() {
		t.mu.Lock()
		close(acquired)
	}()
	select {
	case <-acquired:
		return &Tx{owner: t}, nil
	case <-ctx.Done():
		// Hand the lock straight back once the waiter gets it.
		go func() {
			<-acquired
			t.mu.Unlock()
		}()
		return nil, ctx.Err()
	}
}

// Tx buffers writes until Commit. Only the methods the repositories use do
// anything; the rest satisfy pgx.Tx.
type Tx struct {
	owner *Transactor
	ops   []func()
	done  bool
}

func (t *Tx) stage(op func()) {
	t.ops = append(t.ops, op)
}

func (t *Tx) finish() error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.owner.mu.Unlock()
	return nil
}

func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	for _, op := range t.ops {
		op()
	}
	return t.finish()
}

func (t *Tx) Rollback(ctx context.Context) error {
	t.ops = nil
	return t.finish()
}

func (t *Tx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *Tx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *Tx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *Tx) Conn() *pgx.Conn { return nil }

// apply runs op inside tx when tx is one of ours, otherwise immediately.
func apply(tx pgx.Tx, op func()) {
	if mt, ok := tx.(*Tx); ok && !mt.done {
		mt.stage(op)
		return
	}
	op()
}

// HealthCheck implements ports.HealthChecker for the in-memory store.
type HealthCheck struct{}

func (HealthCheck) Ping(ctx context.Context) error { return nil }
func (HealthCheck) Name() string                   { return "memory" }
