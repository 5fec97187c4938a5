// Package storage keeps the bounded history of dataset summaries.
//
// Every backend applies the same policy: ids are assigned in strictly
// increasing order and never reused, and once an insert takes the history
// above its capacity the oldest entry by (CreatedAt, ID) is removed until the
// capacity holds again. Insert and eviction happen as one step, so readers
// never observe more than Capacity entries.
//
// Backends:
//
//	MemoryStore    process-local, guarded by a RWMutex
//	FileStore      MemoryStore semantics persisted to a JSON file
//	PostgresStore  pgx pool, insert+evict in one advisory-locked transaction
//
// Open selects the backend from config.StorageConfig.
package storage
