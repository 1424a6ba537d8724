// Package pg bootstraps the PostgreSQL layer on top of pgx/v5: a pool with
// retrying connect, goose migrations from an embedded FS, a transaction
// helper with advisory locks, error classifiers and a readiness probe.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, db.Migrations, cfg, log); err != nil {
//	    return err
//	}
//
// Stores that must count and insert atomically lock a key first:
//
//	err := pg.WithTx(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
//	    if err := pg.LockKey(ctx, tx, "tenant:"+id.String()+":max_objectives"); err != nil {
//	        return err
//	    }
//	    // count, compare, insert
//	})
package pg
