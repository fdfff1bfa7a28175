// Package beatmap defines the value types the metadata cache is built from:
// lookup keys, resolved metadata, and the two lookup result variants.
//
// A Key names a piece of remote content either by its content hash or by the
// catalog's external key. Both are case-insensitive and always normalized to
// uppercase. Keys have a stable string encoding ("hash:ABC", "key:1F2E") that
// is used wherever a key must be stored as a map or table key.
//
// A lookup yields a Record, which is either a ValidRecord carrying Metadata or
// an InvalidRecord that only remembers which key was attempted. The variant is
// decided by the Go type, so a record can never claim to be valid without
// metadata.
//
// The package also owns the snapshot wire shape (SnapshotBeatmap) and its
// conversion to Metadata, including the cover URL rewrite for legacy relative
// CDN paths.
package beatmap
