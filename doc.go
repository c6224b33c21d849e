// Package colstore is the storage core of an embedded analytical database.
//
// It maps entities (relations) and their columns onto an ordered
// transactional key-value store, pages fixed-length columns into tablets of
// 128 values, keeps incremental per-column statistics and maintains B-tree
// secondary indexes from the row mutations of each transaction.
//
// # Quick Start
//
//	store, _ := colstore.Open("./data")
//	defer store.Close()
//
//	err := store.Update(ctx, func(tx *colstore.Tx) error {
//	    orders, err := tx.CreateEntity(ctx, "orders",
//	        types.NewColumnDef("orders", "qty", types.Scalar(types.KindInt)),
//	        types.NewColumnDef("orders", "note", types.Scalar(types.KindString)))
//	    if err != nil {
//	        return err
//	    }
//	    if _, err := orders.CreateIndex(ctx, "orders_qty", "qty", catalog.IndexBTree); err != nil {
//	        return err
//	    }
//	    _, err = orders.Insert([]types.Value{types.Int(3), types.String("first")})
//	    return err
//	})
//
// # Transactions
//
// Reads run on a snapshot and never block writers. Write transactions are
// admitted one at a time and see their own writes immediately; other
// transactions see them after commit. Cursors are fixed when opened.
//
// A failure after a row mutation has started writing poisons the
// transaction: every later operation fails and Commit rolls back. Unique
// index violations are detected before anything is written and leave the
// transaction usable.
//
// # Errors
//
// Errors belong to one of the classes ErrCorruption, ErrValidation,
// ErrTxState and ErrUnsupported. Test with errors.Is from
// github.com/cockroachdb/errors.
package colstore
