package core

// SignedEffect returns the contribution of a single transaction to the
// account balance: +amount for a credit, -amount for a debit. Callers
// are expected to have validated amount and kind already.
func SignedEffect(amount Money, kind Kind) Money {
	if kind == Debit {
		return amount.Neg()
	}
	return amount
}

// Effect is the signed contribution of this transaction.
func (t Transaction) Effect() Money {
	return SignedEffect(t.Amount, t.Kind)
}

// CreateDelta is the balance adjustment for inserting tx.
func CreateDelta(tx Transaction) Money {
	return tx.Effect()
}

// UpdateDelta is the single net adjustment for replacing old with new:
// the old effect reversed and the new effect applied in one write, so
// no intermediate balance is ever observable.
func UpdateDelta(old, new Transaction) Money {
	return new.Effect().Sub(old.Effect())
}

// DeleteDelta is the balance adjustment for removing old.
func DeleteDelta(old Transaction) Money {
	return old.Effect().Neg()
}
