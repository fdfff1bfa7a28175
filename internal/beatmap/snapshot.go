package beatmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedSnapshot reports a snapshot record that cannot be converted to Metadata.
var ErrMalformedSnapshot = errors.New("malformed snapshot record")

// SnapshotBeatmap is one element of a snapshot file. It follows the catalog's
// map document: identifiers at the top level with per-version overrides in
// Versions, which take effect only when the top-level field is empty.
type SnapshotBeatmap struct {
	ID          string            `json:"id"`
	Key         string            `json:"key"`
	Hash        string            `json:"hash"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Uploader    SnapshotUploader  `json:"uploader"`
	Metadata    SnapshotMetadata  `json:"metadata"`
	Uploaded    string            `json:"uploaded"`
	CoverURL    string            `json:"coverURL"`
	DownloadURL string            `json:"downloadURL"`
	PreviewURL  string            `json:"previewURL"`
	Versions    []SnapshotVersion `json:"versions"`
}

// SnapshotUploader identifies the account that published a map.
type SnapshotUploader struct {
	Name string `json:"name"`
}

// SnapshotMetadata holds the song fields of a snapshot record.
type SnapshotMetadata struct {
	SongName        string  `json:"songName"`
	SongSubName     string  `json:"songSubName"`
	SongAuthorName  string  `json:"songAuthorName"`
	LevelAuthorName string  `json:"levelAuthorName"`
	BPM             float64 `json:"bpm"`
	Duration        float64 `json:"duration"`
}

// SnapshotVersion is one published revision of a map.
type SnapshotVersion struct {
	Hash        string `json:"hash"`
	Key         string `json:"key"`
	CoverURL    string `json:"coverURL"`
	DownloadURL string `json:"downloadURL"`
	PreviewURL  string `json:"previewURL"`
	CreatedAt   string `json:"createdAt"`
}

// ParseSnapshot decodes the contents of one snapshot file and converts every
// element. The first unconvertible element fails the whole file.
func ParseSnapshot(data []byte) ([]Metadata, error) {
	var raw []SnapshotBeatmap
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	out := make([]Metadata, 0, len(raw))
	for i, item := range raw {
		meta, err := item.ToMetadata()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, meta)
	}
	return out, nil
}

// ToMetadata converts the wire record. Hash and key are required; the result
// has already passed through NormalizeMetadata.
func (b SnapshotBeatmap) ToMetadata() (Metadata, error) {
	latest := b.latestVersion()

	hash := firstNonEmpty(b.Hash, latest.Hash)
	if strings.TrimSpace(hash) == "" {
		return Metadata{}, fmt.Errorf("%w: missing hash", ErrMalformedSnapshot)
	}
	key := firstNonEmpty(b.Key, b.ID, latest.Key)
	if strings.TrimSpace(key) == "" {
		return Metadata{}, fmt.Errorf("%w: missing key for hash %s", ErrMalformedSnapshot, hash)
	}

	meta := Metadata{
		Hash:            hash,
		Key:             strings.TrimSpace(key),
		Name:            b.Name,
		Description:     b.Description,
		SongName:        b.Metadata.SongName,
		SongSubName:     b.Metadata.SongSubName,
		SongAuthorName:  b.Metadata.SongAuthorName,
		LevelAuthorName: b.Metadata.LevelAuthorName,
		Uploader:        b.Uploader.Name,
		BPM:             b.Metadata.BPM,
		DurationSeconds: int(b.Metadata.Duration),
		CoverURL:        firstNonEmpty(b.CoverURL, latest.CoverURL),
		DownloadURL:     firstNonEmpty(b.DownloadURL, latest.DownloadURL),
		PreviewURL:      firstNonEmpty(b.PreviewURL, latest.PreviewURL),
		UploadedAt:      parseTimestamp(firstNonEmpty(b.Uploaded, latest.CreatedAt)),
	}
	return NormalizeMetadata(meta), nil
}

// latestVersion returns the last listed version; the catalog appends new
// revisions at the end.
func (b SnapshotBeatmap) latestVersion() SnapshotVersion {
	if len(b.Versions) == 0 {
		return SnapshotVersion{}
	}
	return b.Versions[len(b.Versions)-1]
}

func parseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999Z07:00", "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
