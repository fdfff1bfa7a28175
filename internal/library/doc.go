// Package library wires the beatmap cache for a running process.
//
// Open builds the in-memory store and cache from configuration, warms them
// from snapshot files, and replays the journal on top. The CLI talks only to
// Library; every mutation goes to the journal first and the cache second so a
// journal failure leaves the cache untouched.
package library
