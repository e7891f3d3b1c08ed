package fieldpolicy

// Apply copies existing and overwrites exactly the validated fields, leaving
// every other field untouched. Pure: the caller's record is never mutated.
// Rejected outcomes apply nothing, so a rejected payload can never partially
// land. R is copied by plain assignment; records holding reference types
// share those between copies.
func (o Outcome[R]) Apply(existing R) R {
	next := existing
	if len(o.violations) > 0 {
		return next
	}
	for _, c := range o.changes {
		c.assign(&next, c.value)
	}
	return next
}
