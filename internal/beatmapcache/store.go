package beatmapcache

import "beatcache/internal/beatmap"

// Store holds the three cache mappings. Lookups expect hashes and external
// keys already normalized by the caller.
type Store interface {
	// Valid returns the record stored under an uppercase hash.
	Valid(hash string) (beatmap.ValidRecord, bool)
	// Invalid returns the failed lookup stored under an encoded key.
	Invalid(encoded string) (beatmap.InvalidRecord, bool)
	// HashForKey resolves an uppercase external key through the secondary index.
	HashForKey(key string) (string, bool)

	// PutValid stores rec under the uppercase form of hash and points the
	// record's external key at it. Legacy cover paths are rewritten onto the
	// CDN URL for that hash. Existing entries for either are overwritten.
	PutValid(hash string, rec beatmap.ValidRecord)
	// PutInvalid stores rec under key's encoding.
	PutInvalid(key beatmap.Key, rec beatmap.InvalidRecord)
	// RemoveInvalid deletes failed lookups; absent keys are ignored.
	RemoveInvalid(keys ...beatmap.Key)
	// Clear empties all three mappings.
	Clear()

	// ValidRecords, InvalidRecords, and KeyIndex return copies of the mappings.
	ValidRecords() map[string]beatmap.ValidRecord
	InvalidRecords() map[string]beatmap.InvalidRecord
	KeyIndex() map[string]string
	Counts() Counts
}

// Counts reports the size of each mapping.
type Counts struct {
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
	Indexed int `json:"indexed"`
}

// MemoryStore is the in-process Store. It is not safe for concurrent mutation.
type MemoryStore struct {
	validByHash         map[string]beatmap.ValidRecord
	invalidByEncodedKey map[string]beatmap.InvalidRecord
	keyToHashIndex      map[string]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.Clear()
	return s
}

func (s *MemoryStore) Valid(hash string) (beatmap.ValidRecord, bool) {
	rec, ok := s.validByHash[hash]
	return rec, ok
}

func (s *MemoryStore) Invalid(encoded string) (beatmap.InvalidRecord, bool) {
	rec, ok := s.invalidByEncodedKey[encoded]
	return rec, ok
}

func (s *MemoryStore) HashForKey(key string) (string, bool) {
	hash, ok := s.keyToHashIndex[key]
	return hash, ok
}

func (s *MemoryStore) PutValid(hash string, rec beatmap.ValidRecord) {
	hash = beatmap.Normalize(hash)
	rec.Metadata.Hash = beatmap.Normalize(rec.Metadata.Hash)
	rec.Metadata.CoverURL = beatmap.NormalizeCoverURL(hash, rec.Metadata.CoverURL)
	s.validByHash[hash] = rec
	if key := beatmap.Normalize(rec.Metadata.Key); key != "" {
		s.keyToHashIndex[key] = hash
	}
}

func (s *MemoryStore) PutInvalid(key beatmap.Key, rec beatmap.InvalidRecord) {
	s.invalidByEncodedKey[key.Encode()] = rec
}

func (s *MemoryStore) RemoveInvalid(keys ...beatmap.Key) {
	for _, key := range keys {
		delete(s.invalidByEncodedKey, key.Encode())
	}
}

func (s *MemoryStore) Clear() {
	s.validByHash = make(map[string]beatmap.ValidRecord)
	s.invalidByEncodedKey = make(map[string]beatmap.InvalidRecord)
	s.keyToHashIndex = make(map[string]string)
}

func (s *MemoryStore) ValidRecords() map[string]beatmap.ValidRecord {
	out := make(map[string]beatmap.ValidRecord, len(s.validByHash))
	for k, v := range s.validByHash {
		out[k] = v
	}
	return out
}

func (s *MemoryStore) InvalidRecords() map[string]beatmap.InvalidRecord {
	out := make(map[string]beatmap.InvalidRecord, len(s.invalidByEncodedKey))
	for k, v := range s.invalidByEncodedKey {
		out[k] = v
	}
	return out
}

func (s *MemoryStore) KeyIndex() map[string]string {
	out := make(map[string]string, len(s.keyToHashIndex))
	for k, v := range s.keyToHashIndex {
		out[k] = v
	}
	return out
}

func (s *MemoryStore) Counts() Counts {
	return Counts{
		Valid:   len(s.validByHash),
		Invalid: len(s.invalidByEncodedKey),
		Indexed: len(s.keyToHashIndex),
	}
}

// putValid is the single insertion path for valid records. It stores the
// record and drops failed lookups the record now answers.
func putValid(store Store, hash string, rec beatmap.ValidRecord) string {
	hash = beatmap.Normalize(hash)
	store.PutValid(hash, rec)

	stale := []beatmap.Key{beatmap.HashKey(hash)}
	if key := beatmap.Normalize(rec.Metadata.Key); key != "" {
		stale = append(stale, beatmap.ExternalKey(key))
	}
	store.RemoveInvalid(stale...)
	return hash
}
