package app

// CanonicalLockOrder returns the two account ids in their canonical
// (lexicographic) acquisition order, independent of which is source and which
// is destination in the request. Every transfer locks accounts in this order,
// so two concurrent transfers over the same pair can never wait on each other
// in a cycle, regardless of direction. This ordering is the deadlock-avoidance
// mechanism and must not be replaced by try-lock/back-off schemes.
func CanonicalLockOrder(accountID1, accountID2 string) (first, second string) {
	if accountID1 < accountID2 {
		return accountID1, accountID2
	}
	return accountID2, accountID1
}
