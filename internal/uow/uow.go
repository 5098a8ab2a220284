package uow

import (
	"context"

	"github.com/kirinyoku/tablego/internal/repository"
)

// AfterCommit runs once the surrounding transaction has committed.
type AfterCommit func(ctx context.Context)

// UoW runs a unit of work against any repository.TxManager and defers side
// effects until the commit succeeds.
type UoW struct {
	tm repository.TxManager
}

func New(tm repository.TxManager) *UoW {
	return &UoW{tm: tm}
}

// Do runs fn inside a transaction. Hooks registered through after run in
// registration order after a successful commit and are dropped on rollback.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Tx, after func(AfterCommit)) error,
) error {
	var hooks []AfterCommit

	err := u.tm.RunTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		hooks = hooks[:0]
		return fn(ctx, tx, func(h AfterCommit) {
			hooks = append(hooks, h)
		})
	})
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}
