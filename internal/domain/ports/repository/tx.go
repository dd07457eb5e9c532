package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// TransactionManager executes a function inside a database transaction,
// passing the tx handle to repositories via the `tx` argument.
//
// Repositories accept `nil` tx for the non-transactional path; inside a
// transaction they may take row locks (SELECT ... FOR UPDATE) as needed.
// The concrete handle type is infra-defined (pgx.Tx for Postgres).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
