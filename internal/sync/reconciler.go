package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jtmorrow/tick/internal/data"
)

// Reconciler merges remote change sets into the controller's working
// set and settles entitlement transactions. It runs on its own
// goroutine, not synchronized with in-flight local edits beyond the
// controller's field-level merge policy.
type Reconciler struct {
	ctrl     *data.Controller
	verifier Verifier

	// MaxVerifyElapsed bounds the backoff for one verification attempt.
	// A transaction that cannot be verified inside it is simply not
	// entitled this round and re-delivers next cycle.
	MaxVerifyElapsed time.Duration
}

// NewReconciler builds a reconciler over the controller.
func NewReconciler(ctrl *data.Controller, verifier Verifier) *Reconciler {
	return &Reconciler{
		ctrl:             ctrl,
		verifier:         verifier,
		MaxVerifyElapsed: 30 * time.Second,
	}
}

// Apply merges one remote change set synchronously. The controller
// emits the single aggregated change notification.
func (r *Reconciler) Apply(ctx context.Context, cs ChangeSet) data.MergeResult {
	if cs.Empty() {
		return data.MergeResult{}
	}
	return r.ctrl.MergeRemote(ctx, cs.Issues, cs.Tags)
}

// Run subscribes to the transport's event streams until the context is
// cancelled. Change sets re-merge as they arrive; transactions settle
// through the verify/finalize state machine. Nothing here is fatal: a
// failed round leaves the transaction unacknowledged for redelivery.
func (r *Reconciler) Run(ctx context.Context, tr Transport) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cs, ok := <-tr.Changes():
			if !ok {
				return nil
			}
			r.Apply(ctx, cs)
		case tx, ok := <-tr.Transactions():
			if !ok {
				return nil
			}
			_ = r.Settle(ctx, tr, tx)
		}
	}
}

// Settle runs one transaction through the state machine: verify the
// entitlement (with retry), persist the unlock flag, then acknowledge
// so the transaction is not re-delivered.
func (r *Reconciler) Settle(ctx context.Context, tr Transport, tx Transaction) error {
	if tx.State == TxFinalized {
		// Already settled on a previous round; just re-ack.
		return tr.Ack(tx)
	}

	var entitled bool
	operation := func() error {
		var err error
		entitled, err = r.verifier.Verify(tx)
		return err
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = r.MaxVerifyElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		// Not entitled this round; the unacked transaction comes back.
		return fmt.Errorf("verify transaction %s: %w", tx.ID, err)
	}

	tx.State = TxVerified
	if !entitled {
		// Verified as not entitled (refund, revocation). Ack so the
		// transport stops re-delivering; the flag is cleared.
		if err := r.ctrl.SetPremiumUnlocked(ctx, false); err != nil {
			return fmt.Errorf("persist entitlement %s: %w", tx.ID, err)
		}
		tx.State = TxFinalized
		return tr.Ack(tx)
	}

	if err := r.ctrl.SetPremiumUnlocked(ctx, true); err != nil {
		return fmt.Errorf("persist entitlement %s: %w", tx.ID, err)
	}
	tx.State = TxFinalized
	return tr.Ack(tx)
}
