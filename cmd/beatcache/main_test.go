package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"beatcache/internal/testsupport"
)

func snapshotFixture() testsupport.ConfigOption {
	return testsupport.WithSnapshots(map[int]string{
		1: `[{"hash":"aaaa","key":"x1","coverURL":"/cdn/aaaa.jpg","metadata":{"songName":"Reality Check","levelAuthorName":"Mapper"}}]`,
		2: `[{"hash":"bbbb","key":"x2","coverURL":"https://cdn.beatsaver.com/bbbb.jpg","metadata":{"songName":"Ghost"}}]`,
	})
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestLoadAndStats(t *testing.T) {
	env := setupCLITestEnv(t, snapshotFixture())

	out, _, err := runCLI(t, []string{"load"}, env.configPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	requireContains(t, out, "from 2 snapshot files")

	out, _, err = runCLI(t, []string{"--json", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var stats struct {
		Cache struct {
			Valid   int `json:"valid"`
			Indexed int `json:"indexed"`
		} `json:"cache"`
		Journal *struct {
			Valid int `json:"valid"`
		} `json:"journal"`
	}
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats %q: %v", out, err)
	}
	if stats.Cache.Valid != 2 || stats.Cache.Indexed != 2 || stats.Journal == nil {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestLookupByHashAndKey(t *testing.T) {
	env := setupCLITestEnv(t, snapshotFixture())

	out, _, err := runCLI(t, []string{"lookup", "AAAA"}, env.configPath)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	requireContains(t, out, "https://cdn.beatsaver.com/aaaa.jpg")
	requireContains(t, out, "Reality Check")

	out, _, err = runCLI(t, []string{"--json", "lookup", "--key", "x2"}, env.configPath)
	if err != nil {
		t.Fatalf("lookup --key: %v", err)
	}
	var result lookupResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode lookup: %v", err)
	}
	if !result.Found || !result.Valid || result.Record == nil || result.Record.Hash != "BBBB" {
		t.Fatalf("unexpected lookup result %+v", result)
	}

	out, _, err = runCLI(t, []string{"lookup", "cccc"}, env.configPath)
	if err != nil {
		t.Fatalf("lookup missing: %v", err)
	}
	requireContains(t, out, "hash:CCCC: not cached")
}

func TestFailInvalidateRoundTrip(t *testing.T) {
	env := setupCLITestEnv(t, snapshotFixture())

	out, _, err := runCLI(t, []string{"fail", "key:dead", "key:x1"}, env.configPath)
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	requireContains(t, out, "key:DEAD: marked failed")
	requireContains(t, out, "key:X1: already resolves")

	out, _, err = runCLI(t, []string{"lookup", "--key", "dead"}, env.configPath)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	requireContains(t, out, "cached failed lookup")

	if _, _, err := runCLI(t, []string{"invalidate", "key:dead"}, env.configPath); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	out, _, err = runCLI(t, []string{"lookup", "--key", "dead"}, env.configPath)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	requireContains(t, out, "not cached")

	if _, _, err := runCLI(t, []string{"fail", "bogus"}, env.configPath); err == nil {
		t.Fatal("expected error for malformed key")
	}
}

func TestImportListAndClear(t *testing.T) {
	env := setupCLITestEnv(t)

	importPath := filepath.Join(env.baseDir, "import.json")
	payload := `[
		{"key": "hash:cccc", "metadata": {"hash": "cccc", "key": "x3", "songName": "Imported Song"}},
		{"key": "key:gone"}
	]`
	if err := os.WriteFile(importPath, []byte(payload), 0o644); err != nil {
		t.Fatalf("write import: %v", err)
	}

	out, _, err := runCLI(t, []string{"import", importPath}, env.configPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	requireContains(t, out, "Imported 2 entries (1 beatmaps, 1 failed lookups)")

	out, _, err = runCLI(t, []string{"list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "Imported Song")

	out, _, err = runCLI(t, []string{"--json", "list", "--failed"}, env.configPath)
	if err != nil {
		t.Fatalf("list --failed: %v", err)
	}
	var failed []string
	if err := json.Unmarshal([]byte(out), &failed); err != nil {
		t.Fatalf("decode failed list: %v", err)
	}
	if len(failed) != 1 || failed[0] != "key:GONE" {
		t.Fatalf("unexpected failed list %v", failed)
	}

	out, _, err = runCLI(t, []string{"clear"}, env.configPath)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	requireContains(t, out, "Cache and journal cleared")
	out, _, err = runCLI(t, []string{"list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "Beatmap cache: empty")
}

func TestClearWithoutJournal(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithoutJournal())

	out, _, err := runCLI(t, []string{"clear"}, env.configPath)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	requireContains(t, out, "Cache cleared (journal disabled)")
	if strings.Contains(out, "journal cleared") {
		t.Fatalf("clear without a journal reported one: %q", out)
	}

	out, _, err = runCLI(t, []string{"--json", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("clear --json: %v", err)
	}
	var payload map[string]bool
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode clear output: %v", err)
	}
	if !payload["cleared"] || payload["journal"] {
		t.Fatalf("unexpected clear payload %v", payload)
	}
}

func TestSearch(t *testing.T) {
	env := setupCLITestEnv(t, snapshotFixture())

	out, _, err := runCLI(t, []string{"search", "reality"}, env.configPath)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	requireContains(t, out, "Reality Check")

	out, _, err = runCLI(t, []string{"search", "zzzz"}, env.configPath)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	requireContains(t, out, "No beatmaps match")
}

func TestMalformedSnapshotFailsCommand(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithSnapshots(map[int]string{1: `[{"key":"x"}]`}))

	if _, _, err := runCLI(t, []string{"stats"}, env.configPath); err == nil {
		t.Fatal("expected malformed snapshot to fail the command")
	}
}
