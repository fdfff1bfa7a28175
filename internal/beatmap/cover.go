package beatmap

import "strings"

const (
	// LegacyCoverPrefix marks cover paths stored relative to the catalog CDN.
	LegacyCoverPrefix = "/cdn/"
	// CoverCDNBase is the origin legacy cover paths are rewritten onto.
	CoverCDNBase = "https://cdn.beatsaver.com/"
)

// NormalizeCoverURL rewrites a legacy relative cover path to the absolute CDN
// URL derived from the lowercase hash. Any other URL is returned unchanged.
func NormalizeCoverURL(hash, coverURL string) string {
	if !strings.HasPrefix(coverURL, LegacyCoverPrefix) {
		return coverURL
	}
	return CoverCDNBase + strings.ToLower(strings.TrimSpace(hash)) + ".jpg"
}
