package beatmap

import "time"

// Metadata is the resolved description of one beatmap. Hash is stored
// uppercase once the metadata has passed through NormalizeMetadata.
type Metadata struct {
	Hash            string    `json:"hash"`
	Key             string    `json:"key"`
	Name            string    `json:"name,omitempty"`
	Description     string    `json:"description,omitempty"`
	SongName        string    `json:"songName,omitempty"`
	SongSubName     string    `json:"songSubName,omitempty"`
	SongAuthorName  string    `json:"songAuthorName,omitempty"`
	LevelAuthorName string    `json:"levelAuthorName,omitempty"`
	Uploader        string    `json:"uploader,omitempty"`
	BPM             float64   `json:"bpm,omitempty"`
	DurationSeconds int       `json:"duration,omitempty"`
	CoverURL        string    `json:"coverURL"`
	DownloadURL     string    `json:"downloadURL,omitempty"`
	PreviewURL      string    `json:"previewURL,omitempty"`
	UploadedAt      time.Time `json:"uploaded,omitzero"`
}

// Title returns the best human-readable name for the map.
func (m Metadata) Title() string {
	switch {
	case m.SongName != "" && m.SongSubName != "":
		return m.SongName + " " + m.SongSubName
	case m.SongName != "":
		return m.SongName
	default:
		return m.Name
	}
}

// NormalizeMetadata uppercases the hash and rewrites legacy cover URLs.
// Applying it twice yields the same result as applying it once.
func NormalizeMetadata(m Metadata) Metadata {
	m.Hash = Normalize(m.Hash)
	m.CoverURL = NormalizeCoverURL(m.Hash, m.CoverURL)
	return m
}

// Resolution describes how a lookup result came to be.
type Resolution struct {
	Valid           bool
	AttemptedSource Key
}

// Record is the result of a lookup: either a ValidRecord or an InvalidRecord.
// The set of implementations is closed.
type Record interface {
	Resolution() Resolution
	isRecord()
}

// ValidRecord is a successfully resolved lookup.
type ValidRecord struct {
	Metadata        Metadata
	AttemptedSource Key
}

// NewValidRecord builds a ValidRecord whose source is the key it was fetched by.
func NewValidRecord(m Metadata, source Key) ValidRecord {
	return ValidRecord{Metadata: m, AttemptedSource: source}
}

func (r ValidRecord) Resolution() Resolution {
	return Resolution{Valid: true, AttemptedSource: r.AttemptedSource}
}

func (ValidRecord) isRecord() {}

// InvalidRecord is a confirmed failed lookup for AttemptedSource. Caching it
// suppresses further fetch attempts for the same key.
type InvalidRecord struct {
	AttemptedSource Key
}

// NewInvalidRecord records a failed lookup of source.
func NewInvalidRecord(source Key) InvalidRecord {
	return InvalidRecord{AttemptedSource: source}
}

func (r InvalidRecord) Resolution() Resolution {
	return Resolution{Valid: false, AttemptedSource: r.AttemptedSource}
}

func (InvalidRecord) isRecord() {}

// AsValid returns the ValidRecord behind r, if any.
func AsValid(r Record) (ValidRecord, bool) {
	switch v := r.(type) {
	case ValidRecord:
		return v, true
	case *ValidRecord:
		if v != nil {
			return *v, true
		}
	}
	return ValidRecord{}, false
}

// AsInvalid returns the InvalidRecord behind r, if any.
func AsInvalid(r Record) (InvalidRecord, bool) {
	switch v := r.(type) {
	case InvalidRecord:
		return v, true
	case *InvalidRecord:
		if v != nil {
			return *v, true
		}
	}
	return InvalidRecord{}, false
}
