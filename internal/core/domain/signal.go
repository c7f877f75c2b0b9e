package domain

import "time"

// SignalUnchanged reports whether a stored change signal makes refetching a
// unit unnecessary.
//
// Timestamp signals are compared chronologically after parsing: ISO strings
// with different timezone offsets are not lexically ordered the same as
// chronologically, so string comparison is not safe. A stored timestamp
// equal to or after the observed one counts as unchanged. When either side
// does not parse as a timestamp the signals are treated as opaque hashes
// and compared for equality.
func SignalUnchanged(prev, current string) bool {
	if prev == "" {
		return false
	}

	pt, errPrev := time.Parse(time.RFC3339, prev)
	ct, errCur := time.Parse(time.RFC3339, current)
	if errPrev == nil && errCur == nil {
		return !pt.Before(ct)
	}

	return prev == current
}
