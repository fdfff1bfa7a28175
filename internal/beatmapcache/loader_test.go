package beatmapcache_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"beatcache/internal/beatmap"
	"beatcache/internal/beatmapcache"
)

func writeSnapshot(t *testing.T, dir, name, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoaderLaterFilesOverwriteEarlier(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "beatsaverCache1.json", `[{"hash":"aaaa","key":"x1","coverURL":"/cdn/aaaa.jpg"}]`)
	writeSnapshot(t, dir, "beatsaverCache2.json", `[{"hash":"AAAA","key":"x1","coverURL":"http://other"}]`)

	store := beatmapcache.NewMemoryStore()
	summary, err := beatmapcache.NewLoader(store, dir).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if summary.Files != 2 || summary.Records != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	cache := beatmapcache.New(store)
	rec, ok := cache.GetByHash("aaaa")
	got := mustValid(t, rec, ok)
	if got.Metadata.CoverURL != "http://other" {
		t.Fatalf("expected later file to win, got cover %q", got.Metadata.CoverURL)
	}
	if got.AttemptedSource != beatmap.HashKey("AAAA") {
		t.Fatalf("unexpected attempted source %v", got.AttemptedSource)
	}
	if hash, ok := store.HashForKey("X1"); !ok || hash != "AAAA" {
		t.Fatalf("expected index X1 -> AAAA, got %q %v", hash, ok)
	}
}

func TestLoaderRewritesLegacyCover(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "beatsaverCache0.json", `[{"hash":"ABCDEF","key":"k","coverURL":"/cdn/abc.jpg"}]`)

	store := beatmapcache.NewMemoryStore()
	if _, err := beatmapcache.NewLoader(store, dir).Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	rec, ok := store.Valid("ABCDEF")
	if !ok {
		t.Fatal("expected record after load")
	}
	if rec.Metadata.CoverURL != "https://cdn.beatsaver.com/abcdef.jpg" {
		t.Fatalf("unexpected cover %q", rec.Metadata.CoverURL)
	}
}

func TestLoaderMissingDirectory(t *testing.T) {
	store := beatmapcache.NewMemoryStore()
	summary, err := beatmapcache.NewLoader(store, filepath.Join(t.TempDir(), "absent")).Load()
	if err != nil {
		t.Fatalf("expected missing directory to be tolerated, got %v", err)
	}
	if summary.Files != 0 || store.Counts().Valid != 0 {
		t.Fatalf("expected nothing loaded, got %+v", summary)
	}
}

func TestLoaderSkipsNonMatchingEntries(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "beatsaverCache1.json", `[{"hash":"aaaa","key":"x1"}]`)
	writeSnapshot(t, dir, "beatsaverCache.json", `not json`)
	writeSnapshot(t, dir, "beatsaverCacheA.json", `not json`)
	writeSnapshot(t, dir, "beatsaverCache2.json.bak", `not json`)
	writeSnapshot(t, dir, "otherCache3.json", `not json`)
	if err := os.Mkdir(filepath.Join(dir, "beatsaverCache4.json"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	store := beatmapcache.NewMemoryStore()
	summary, err := beatmapcache.NewLoader(store, dir).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if summary.Files != 1 || store.Counts().Valid != 1 {
		t.Fatalf("expected only the matching file, got %+v", summary)
	}
}

func TestLoaderOrdersFilesNumerically(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"beatsaverCache10.json", "beatsaverCache2.json", "beatsaverCache1.json"} {
		writeSnapshot(t, dir, name, `[]`)
	}

	files, err := beatmapcache.NewLoader(nil, dir).Files()
	if err != nil {
		t.Fatalf("Files failed: %v", err)
	}
	want := []string{"beatsaverCache1.json", "beatsaverCache2.json", "beatsaverCache10.json"}
	if len(files) != len(want) {
		t.Fatalf("expected %d files, got %v", len(want), files)
	}
	for i, name := range want {
		if filepath.Base(files[i]) != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, filepath.Base(files[i]))
		}
	}
}

func TestLoaderMalformedFileStopsLoad(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "beatsaverCache1.json", `[{"hash":"aaaa","key":"x1"}]`)
	writeSnapshot(t, dir, "beatsaverCache2.json", `[{"key":"no-hash"}]`)
	writeSnapshot(t, dir, "beatsaverCache3.json", `[{"hash":"cccc","key":"x3"}]`)

	store := beatmapcache.NewMemoryStore()
	summary, err := beatmapcache.NewLoader(store, dir).Load()
	if !errors.Is(err, beatmap.ErrMalformedSnapshot) {
		t.Fatalf("expected ErrMalformedSnapshot, got %v", err)
	}
	if summary.Files != 1 {
		t.Fatalf("expected one file applied before failure, got %+v", summary)
	}
	if _, ok := store.Valid("AAAA"); !ok {
		t.Fatal("records from earlier files should remain")
	}
	if _, ok := store.Valid("CCCC"); ok {
		t.Fatal("files after the malformed one must not be applied")
	}
}

func TestLoaderInvalidJSONFails(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "beatsaverCache1.json", `{"hash":`)

	_, err := beatmapcache.NewLoader(beatmapcache.NewMemoryStore(), dir).Load()
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func TestLoaderCustomPrefix(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "maps.v1.json", `[{"hash":"aaaa","key":"x1"}]`)
	writeSnapshot(t, dir, "mapsXv2.json", `[{"hash":"bbbb","key":"x2"}]`)
	writeSnapshot(t, dir, "beatsaverCache1.json", `[{"hash":"cccc","key":"x3"}]`)

	store := beatmapcache.NewMemoryStore()
	if _, err := beatmapcache.NewLoader(store, dir, beatmapcache.WithFilePrefix("maps.v")).Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if counts := store.Counts(); counts.Valid != 1 {
		t.Fatalf("expected the prefix to be matched literally, got %+v", counts)
	}
}

func TestLoaderClearsFailedLookupsItResolves(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "beatsaverCache1.json", `[{"hash":"aaaa","key":"x1"}]`)

	store := beatmapcache.NewMemoryStore()
	cache := beatmapcache.New(store)
	failed := beatmap.ExternalKey("x1")
	cache.AddInvalid(failed, beatmap.NewInvalidRecord(failed))

	if _, err := beatmapcache.NewLoader(store, dir).Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	rec, ok := cache.GetByExternalKey("X1")
	if got := mustValid(t, rec, ok); got.Metadata.Hash != "AAAA" {
		t.Fatalf("unexpected record %#v", got)
	}
	if store.Counts().Invalid != 0 {
		t.Fatal("expected failed lookup to be dropped")
	}
}
