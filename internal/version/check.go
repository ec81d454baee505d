// Package version holds the build version and a best-effort update
// check against the public release feed.
package version

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-version"
)

// AppVersion is stamped at build time via -ldflags.
var AppVersion = "v0.0.0"

type githubRelease struct {
	TagName string `json:"tag_name"`
}

// CheckForUpdates prints a notice when a newer release exists. Any
// failure is silent; this must never block or break startup.
func CheckForUpdates() {
	url := "https://api.github.com/repos/threadwell/loom/releases/latest"

	client := http.Client{
		Timeout: 2 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return
	}

	current, err := version.NewVersion(AppVersion)
	if err != nil {
		return
	}
	latest, err := version.NewVersion(release.TagName)
	if err != nil {
		return
	}

	if current.LessThan(latest) {
		fmt.Printf("A newer release is available: %s (running %s)\n", release.TagName, AppVersion)
	}
}
