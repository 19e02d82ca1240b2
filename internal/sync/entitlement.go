package sync

// TxState is the settlement state of a premium-unlock transaction.
// Transactions move strictly forward: Unverified -> Verified -> Finalized.
type TxState int

const (
	TxUnverified TxState = iota
	TxVerified
	TxFinalized
)

func (s TxState) String() string {
	switch s {
	case TxUnverified:
		return "unverified"
	case TxVerified:
		return "verified"
	case TxFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Transaction is one premium-unlock purchase event delivered by the
// transport. Transactions re-deliver until acknowledged.
type Transaction struct {
	ID    string
	State TxState
}

// Verifier checks a transaction against the entitlement source.
// Implementations talk to whatever purchase backend the platform has;
// the reconciler only cares about entitled yes/no.
type Verifier interface {
	Verify(tx Transaction) (entitled bool, err error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(tx Transaction) (bool, error)

// Verify implements Verifier.
func (f VerifierFunc) Verify(tx Transaction) (bool, error) {
	return f(tx)
}
