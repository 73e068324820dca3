package storage

import (
	"fmt"
	"strconv"
)

// encodeInt64/decodeInt64 give every backend a single textual counter
// representation for atomic_incr, matching the self-describing textual
// format spec.md §6 requires for all durable records.
func encodeInt64(v int64) []byte {
	return []byte(strconv.FormatInt(v, 10))
}

func decodeInt64(b []byte) (int64, error) {
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse counter %q: %w", string(b), err)
	}
	return v, nil
}
