package library

import (
	"encoding/json"
	"fmt"
	"os"

	"beatcache/internal/beatmap"
	"beatcache/internal/beatmapcache"
)

// ImportEntry is one element of an import file: the key that was looked up
// and, when the lookup succeeded, the resolved metadata.
type ImportEntry struct {
	Key      beatmap.Key       `json:"key"`
	Metadata *beatmap.Metadata `json:"metadata,omitempty"`
}

// ReadImportFile parses a JSON array of ImportEntry into bulk entries.
func ReadImportFile(path string) ([]beatmapcache.BulkEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	return ParseImport(data)
}

// ParseImport converts raw import JSON into bulk entries. Entries with
// metadata become valid records attributed to their key; the rest are
// failed lookups.
func ParseImport(data []byte) ([]beatmapcache.BulkEntry, error) {
	var raw []ImportEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode import: %w", err)
	}
	entries := make([]beatmapcache.BulkEntry, 0, len(raw))
	for i, item := range raw {
		if !item.Key.Valid() {
			return nil, fmt.Errorf("import entry %d: key is required", i)
		}
		entry := beatmapcache.BulkEntry{Key: item.Key, Record: beatmap.NewInvalidRecord(item.Key)}
		if item.Metadata != nil {
			if beatmap.Normalize(item.Metadata.Hash) == "" {
				return nil, fmt.Errorf("import entry %d (%s): metadata hash is required", i, item.Key)
			}
			entry.Record = beatmap.NewValidRecord(*item.Metadata, item.Key)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
