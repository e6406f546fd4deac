package database

import "context"

// NextCounterValue atomically increments the named counter and returns the
// new value, creating the row on first use. One statement, one row: no two
// callers can observe the same value. Run this on the pool, not inside the
// order transaction: values consumed by a commit that later fails stay
// skipped, which keeps order numbers strictly increasing at the cost of
// gaps.
func (q *Queries) NextCounterValue(ctx context.Context, name string) (int64, error) {
	var value int64
	err := q.db.QueryRow(ctx, `
		INSERT INTO counters (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
		RETURNING value`, name).Scan(&value)
	return value, err
}
