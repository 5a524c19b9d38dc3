package allocation

import "github.com/dukerupert/choreledger/internal/model"

// DefaultLockMonths is how long the invest bucket stays locked.
const DefaultLockMonths = 4

// LockPolicy sets lock_until on postings that move money into invest.
// The lock is informational: the ledger records it, nothing withdraws from
// invest yet.
type LockPolicy struct {
	Months int
}

// LockUntil returns the date the invest portion of a posting dated txnDate
// unlocks, or the zero Date when the posting has no invest component.
func (p LockPolicy) LockUntil(txnDate model.Date, investCents int64) model.Date {
	if investCents == 0 || p.Months <= 0 {
		return model.Date{}
	}
	return txnDate.AddMonths(p.Months)
}
