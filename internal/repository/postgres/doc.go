// Package postgres implements the service repositories against
// PostgreSQL with database/sql and lib/pq. Conditional state
// transitions (claiming, terminal moves, resolve actions) are single
// UPDATE statements gated on the current status, so correctness never
// rests on a read-then-write pair.
package postgres
