package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// escrowTxOptions is used for every escrow transition. Row locks taken with
// SELECT ... FOR UPDATE serialise writers on one booking.
var escrowTxOptions = pgx.TxOptions{
	IsoLevel:   pgx.ReadCommitted,
	AccessMode: pgx.ReadWrite,
}

// Transactor opens the transactions escrow transitions run in.
type Transactor struct {
	pool Pool
}

func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.BeginTx(ctx, escrowTxOptions)
	if err != nil {
		return nil, fmt.Errorf("begin escrow transaction: %w", err)
	}
	return tx, nil
}
