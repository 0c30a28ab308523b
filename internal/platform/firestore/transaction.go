package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
)

// Product documents take contended counter writes (views, sales).
const (
	txMaxAttempts = 8
	txTimeout     = 10 * time.Second
)

// TxFunc runs inside a Firestore transaction and may be invoked more than once.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// RunTransaction executes fn in a transaction on the shared client. The caller's deadline is
// kept when it is sooner than the transaction timeout.
func (p *Provider) RunTransaction(ctx context.Context, fn TxFunc) error {
	client, err := p.Client(ctx)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > txTimeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, txTimeout)
		defer cancel()
	}
	return WrapError("transaction", client.RunTransaction(ctx, fn, firestore.MaxAttempts(txMaxAttempts)))
}
