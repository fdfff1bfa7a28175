// Package journal persists cache activity in SQLite so lookups resolved or
// failed during one run survive into the next.
//
// Snapshot files are read-only; the journal is where the process writes. Each
// row carries the session that recorded it. Replay feeds every row back into a
// beatmapcache.Cache through BulkUpsert after the snapshots have loaded, so
// journal rows win over snapshot rows for the same hash.
//
// One process owns a journal at a time. Open takes an exclusive lock file next
// to the database and fails with ErrLocked when another process holds it.
// Schema changes bump schemaVersion; users clear the journal to adopt them.
package journal
