// Package update checks GitHub for new releases of the automation
// module. The launcher only reports; installing updates stays in the
// module's own hands.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
)

// DefaultRepo is the upstream repository of the automation module.
const DefaultRepo = "NateScarlet/auto-derby"

// apiBase is the GitHub API root. Overridden in tests.
var apiBase = "https://api.github.com"

// httpClient is the HTTP client used to fetch release info.
// It can be overridden in tests.
var httpClient = &http.Client{Timeout: 10 * time.Second}

// Release is the subset of the GitHub release payload the launcher
// cares about.
type Release struct {
	TagName     string    `json:"tag_name"`
	HTMLURL     string    `json:"html_url"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
}

// Check fetches the latest release of repo ("owner/name"). An empty repo
// falls back to DefaultRepo.
func Check(ctx context.Context, repo string) (Release, error) {
	if repo == "" {
		repo = DefaultRepo
	}

	url := fmt.Sprintf("%s/repos/%s/releases/latest", apiBase, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Release{}, fmt.Errorf("failed to build release request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return Release{}, fmt.Errorf("failed to reach GitHub: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Release{}, fmt.Errorf("GitHub API returned status %d for %s", resp.StatusCode, repo)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return Release{}, fmt.Errorf("failed to decode release: %w", err)
	}
	if release.TagName == "" {
		return Release{}, fmt.Errorf("release for %s has no tag", repo)
	}
	return release, nil
}

// IsNewer reports whether latest is a strictly newer version than
// current. Comparison is numeric over dotted fields after stripping a
// leading "v". A current version carrying a suffix ("-dev",
// "-6-gaa9511-dirty") is a local build; those never claim an update so
// developers aren't nagged about their own trees.
func IsNewer(current, latest string) bool {
	if current == "" || latest == "" {
		return false
	}
	if strings.Contains(strings.TrimPrefix(current, "v"), "-") {
		return false
	}

	cur := versionFields(current)
	lat := versionFields(latest)
	if cur == nil || lat == nil {
		// Not parseable as versions; fall back to plain inequality.
		return normalizeTag(current) != normalizeTag(latest)
	}

	for i := 0; i < len(cur) || i < len(lat); i++ {
		c, l := 0, 0
		if i < len(cur) {
			c = cur[i]
		}
		if i < len(lat) {
			l = lat[i]
		}
		if l != c {
			return l > c
		}
	}
	return false
}

func normalizeTag(tag string) string {
	return strings.TrimPrefix(strings.TrimSpace(tag), "v")
}

// versionFields parses "v1.12.3" into [1 12 3]; nil when any dotted
// field is not a number.
func versionFields(tag string) []int {
	parts := strings.Split(normalizeTag(tag), ".")
	fields := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil
		}
		fields = append(fields, n)
	}
	return fields
}

// RenderNotes renders a release body (GitHub markdown) for the terminal.
func RenderNotes(body string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", fmt.Errorf("failed to build markdown renderer: %w", err)
	}
	out, err := renderer.Render(body)
	if err != nil {
		return "", fmt.Errorf("failed to render release notes: %w", err)
	}
	return out, nil
}
