// Package beatmapcache provides the dual-key metadata cache for beatmaps
// fetched from the remote catalog.
//
// A Store owns three mappings: hash to ValidRecord, encoded key to
// InvalidRecord, and external key to hash. Cache is the facade the rest of the
// program uses; it looks records up by hash or by external key, seeds valid and
// failed lookups from batch fetches, and lets callers opt back into a fetch by
// invalidating a failed entry. Loader warms a Store from numbered snapshot
// files on disk.
//
// # Concurrency
//
// The cache follows a single-writer model. MemoryStore performs no locking;
// confine mutation to one goroutine or synchronize externally.
//
// # Normalization
//
// Hashes and external keys are uppercased before every store and comparison.
// Legacy relative cover URLs are rewritten when a record is inserted, so reads
// never mutate stored records.
package beatmapcache
