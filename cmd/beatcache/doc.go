// Package main hosts the beatcache CLI entrypoint and command graph.
//
// Every command resolves configuration once, opens the library (which warms
// the cache from snapshots and replays the journal), runs, and closes it.
// Output is a table on stdout, or indented JSON with --json. Logs go to
// stderr and the configured log directory, tagged with a per-invocation
// session id.
package main
