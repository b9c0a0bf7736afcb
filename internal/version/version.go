// Package version reports the build version of the dashboard. Values come
// from ldflags, then the module build info, then git when run from a checkout.
package version

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// Set via -ldflags "-X github.com/j-veylop/audit-dashboard-tui/internal/version.Version=...".
var (
	Version = ""
	Commit  = ""
	Date    = ""

	once sync.Once

	version string
	commit  string
	date    string
)

var execCommand = exec.CommandContext

var readBuildInfo = debug.ReadBuildInfo

const gitTimeout = 2 * time.Second

func ensureInitialized() {
	once.Do(func() {
		version, commit, date = Version, Commit, Date

		if info, ok := readBuildInfo(); ok {
			if version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
				version = strings.TrimPrefix(info.Main.Version, "v")
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					if commit == "" && len(s.Value) >= 7 {
						commit = s.Value[:7]
					}
				case "vcs.time":
					if date == "" && len(s.Value) >= 10 {
						date = s.Value[:10]
					}
				}
			}
		}

		if commit == "" {
			commit = gitOutput("unknown", "describe", "--always", "--dirty")
		}
		if version == "" {
			version = strings.TrimPrefix(gitOutput("dev", "describe", "--tags", "--abbrev=0"), "v")
		}
		if date == "" {
			date = time.Now().Format(time.DateOnly)
		}
	})
}

func gitOutput(fallback string, args ...string) string {
	ctx, cancel := context.WithTimeout(context.Background(), gitTimeout)
	defer cancel()

	cmd := execCommand(ctx, "git", args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return fallback
	}
	if v := strings.TrimSpace(out.String()); v != "" {
		return v
	}
	return fallback
}

// Reset clears the resolved values so the next call resolves them again.
func Reset() {
	once = sync.Once{}
	version, commit, date = "", "", ""
}

// GetVersion returns the release version, or "dev".
func GetVersion() string {
	ensureInitialized()
	return version
}

// GetCommit returns the short commit hash, or "unknown".
func GetCommit() string {
	ensureInitialized()
	return commit
}

// GetDate returns the build date.
func GetDate() string {
	ensureInitialized()
	return date
}

// Info returns a one-line description for --version and the info tab.
func Info() string {
	ensureInitialized()
	return fmt.Sprintf("audit-dashboard-tui %s (commit: %s, built: %s, %s/%s)",
		version, commit, date, runtime.GOOS, runtime.GOARCH)
}
