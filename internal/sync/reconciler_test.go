package sync

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtmorrow/tick/internal/data"
	"github.com/jtmorrow/tick/internal/store"
)

func newTestController(t *testing.T) *data.Controller {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	c := data.New(s)
	c.FlushInterval = 50 * time.Millisecond
	require.NoError(t, c.Load(context.Background()))
	return c
}

// chanTransport is a channel-backed fake transport.
type chanTransport struct {
	changes chan ChangeSet
	txs     chan Transaction

	mu    sync.Mutex
	acked []Transaction
}

func newChanTransport() *chanTransport {
	return &chanTransport{
		changes: make(chan ChangeSet, 4),
		txs:     make(chan Transaction, 4),
	}
}

func (c *chanTransport) Changes() <-chan ChangeSet        { return c.changes }
func (c *chanTransport) Transactions() <-chan Transaction { return c.txs }
func (c *chanTransport) Ack(tx Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acked = append(c.acked, tx)
	return nil
}
func (c *chanTransport) ackedTxs() []Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Transaction(nil), c.acked...)
}

func TestReadChangeSet(t *testing.T) {
	input := strings.Join([]string{
		`{"kind":"tag","id":"t1","name":"bug"}`,
		``,
		`{"kind":"issue","id":"i1","title":"crash","priority":2,"tags":["t1"],"updated_at":"2025-06-01T10:00:00Z"}`,
		`{"kind":"issue","id":"i2","deleted":true}`,
		`{"kind":"mystery","id":"x"}`,
	}, "\n")

	cs, err := ReadChangeSet(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, cs.Tags, 1)
	require.Len(t, cs.Issues, 2)
	assert.Equal(t, "bug", cs.Tags[0].Tag.Name)
	assert.Equal(t, "crash", cs.Issues[0].Issue.Title)
	assert.Equal(t, []string{"t1"}, cs.Issues[0].TagIDs)
	assert.True(t, cs.Issues[1].Deleted)
}

func TestReadChangeSet_BadLine(t *testing.T) {
	_, err := ReadChangeSet(strings.NewReader(`{"kind":"issue"` + "\n"))
	assert.Error(t, err)
}

func TestChangeSetRoundTrip(t *testing.T) {
	c := newTestController(t)
	ctx := context.Background()

	tag := c.CreateTag(ctx)
	c.RenameTag(tag.ID, "bug")
	issue := c.CreateIssue(ctx)
	c.SetTitle(issue.ID, "exported")
	require.True(t, c.AttachTag(ctx, issue.ID, tag.ID))
	require.NoError(t, c.Save(ctx))

	var buf bytes.Buffer
	require.NoError(t, WriteChangeSet(&buf, c.AllIssues(), c.IssueTags, c.AllTags()))

	cs, err := ReadChangeSet(&buf)
	require.NoError(t, err)

	// A fresh device merging the export ends up with the same records.
	other := newTestController(t)
	res := NewReconciler(other, nil).Apply(ctx, cs)
	assert.Equal(t, 2, res.Created)

	got, ok := other.Issue(issue.ID)
	require.True(t, ok)
	assert.Equal(t, "exported", got.Title)
	assert.True(t, other.HasTag(issue.ID, tag.ID))
}

func TestApply_EmptySetIsNoop(t *testing.T) {
	c := newTestController(t)
	r := NewReconciler(c, nil)
	res := r.Apply(context.Background(), ChangeSet{})
	assert.Equal(t, data.MergeResult{}, res)
}

func TestSettle_EntitledTransaction(t *testing.T) {
	c := newTestController(t)
	tr := newChanTransport()
	r := NewReconciler(c, VerifierFunc(func(tx Transaction) (bool, error) {
		return true, nil
	}))

	err := r.Settle(context.Background(), tr, Transaction{ID: "tx1"})
	require.NoError(t, err)

	assert.True(t, c.PremiumUnlocked())
	acked := tr.ackedTxs()
	require.Len(t, acked, 1)
	assert.Equal(t, TxFinalized, acked[0].State, "acked only after finalizing")
}

func TestSettle_RevokedTransactionClearsFlag(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.SetPremiumUnlocked(context.Background(), true))

	tr := newChanTransport()
	r := NewReconciler(c, VerifierFunc(func(tx Transaction) (bool, error) {
		return false, nil
	}))

	require.NoError(t, r.Settle(context.Background(), tr, Transaction{ID: "tx1"}))
	assert.False(t, c.PremiumUnlocked())
	assert.Len(t, tr.ackedTxs(), 1)
}

func TestSettle_VerifyRetriesThenSucceeds(t *testing.T) {
	c := newTestController(t)
	tr := newChanTransport()

	var calls int
	r := NewReconciler(c, VerifierFunc(func(tx Transaction) (bool, error) {
		calls++
		if calls < 3 {
			return false, errors.New("transient")
		}
		return true, nil
	}))
	r.MaxVerifyElapsed = 2 * time.Second

	require.NoError(t, r.Settle(context.Background(), tr, Transaction{ID: "tx1"}))
	assert.GreaterOrEqual(t, calls, 3)
	assert.True(t, c.PremiumUnlocked())
}

func TestSettle_VerifyFailureLeavesUnacked(t *testing.T) {
	c := newTestController(t)
	tr := newChanTransport()

	r := NewReconciler(c, VerifierFunc(func(tx Transaction) (bool, error) {
		return false, errors.New("backend down")
	}))
	r.MaxVerifyElapsed = 100 * time.Millisecond

	err := r.Settle(context.Background(), tr, Transaction{ID: "tx1"})
	assert.Error(t, err, "not entitled this round")
	assert.False(t, c.PremiumUnlocked())
	assert.Empty(t, tr.ackedTxs(), "unacked transactions re-deliver next cycle")
}

func TestSettle_FinalizedReacksWithoutVerify(t *testing.T) {
	c := newTestController(t)
	tr := newChanTransport()

	r := NewReconciler(c, VerifierFunc(func(tx Transaction) (bool, error) {
		t.Fatal("finalized transactions are not re-verified")
		return false, nil
	}))

	require.NoError(t, r.Settle(context.Background(), tr, Transaction{ID: "tx1", State: TxFinalized}))
	assert.Len(t, tr.ackedTxs(), 1)
}

func TestRun_MergesAndSettles(t *testing.T) {
	c := newTestController(t)
	tr := newChanTransport()
	r := NewReconciler(c, VerifierFunc(func(tx Transaction) (bool, error) {
		return true, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx, tr)
	}()

	cs, err := ReadChangeSet(strings.NewReader(
		`{"kind":"issue","id":"i1","title":"pushed","updated_at":"2025-06-01T10:00:00Z"}` + "\n"))
	require.NoError(t, err)
	tr.changes <- cs
	tr.txs <- Transaction{ID: "tx1"}

	require.Eventually(t, func() bool {
		_, ok := c.Issue("i1")
		return ok && c.PremiumUnlocked() && len(tr.ackedTxs()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestTxStateString(t *testing.T) {
	assert.Equal(t, "unverified", TxUnverified.String())
	assert.Equal(t, "verified", TxVerified.String())
	assert.Equal(t, "finalized", TxFinalized.String())
}
