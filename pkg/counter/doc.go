// Package counter implements durable, atomically-updated usage counters
// keyed by subject and accounting period (daily or monthly).
//
// Counters roll over lazily: the first access after a period boundary
// resets the count to zero and advances the stored anchor, exactly once
// regardless of concurrent access. Increments are conditional - a counter
// is only advanced when the post-increment count stays within the limit,
// as one atomic operation, so two concurrent callers can never both take
// the last remaining slot.
//
// Three Store implementations are provided:
//
//   - MemoryStore: mutex-guarded, for tests and single-process setups
//   - RedisStore: a Lua script performing rollover + conditional increment
//   - PGStore: a single conditional upsert statement against PostgreSQL
//
// All period math is performed in UTC: the daily anchor is 00:00 UTC of
// the current day, the monthly anchor is the first of the current month.
package counter
