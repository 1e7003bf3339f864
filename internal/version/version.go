package version

import (
	"os/exec"
	"runtime/debug"
	"strings"
)

// Set through -ldflags at release time.
var (
	Version = "0.1.0"
	Commit  = "unknown"
	Date    = "unknown"
)

type gitFunc func(args ...string) (string, error)

// Resolve returns the full version string. Inside a git checkout whose HEAD
// is not on a release tag a describe suffix is appended; outside one the VCS
// revision stamped by the Go toolchain is used instead.
func Resolve() string {
	return resolveVersion(Version, runGit, buildRevision)
}

func resolveVersion(base string, git gitFunc, revision func() string) string {
	if base == "" {
		base = "0.0.0"
	}

	suffix, inRepo := computeGitSuffix(base, git)
	if !inRepo {
		if rev := revision(); rev != "" {
			return base + "+" + rev
		}
		return base
	}
	if suffix == "" {
		return base
	}
	return base + "-" + suffix
}

func computeGitSuffix(base string, git gitFunc) (string, bool) {
	if _, err := git("rev-parse", "--git-dir"); err != nil {
		return "", false
	}

	if _, err := git("describe", "--tags", "--exact-match"); err == nil {
		return "", true
	}

	desc, err := git("describe", "--tags", "--dirty", "--always")
	if err != nil {
		return "", true
	}

	return strings.TrimPrefix(desc, "v"+base+"-"), true
}

// buildRevision prefers the Commit set at link time and falls back to the
// vcs.revision recorded in the binary's build info.
func buildRevision() string {
	if Commit != "" && Commit != "unknown" {
		return shortRevision(Commit, false)
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}

	var rev string
	var modified bool
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			rev = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	return shortRevision(rev, modified)
}

func shortRevision(rev string, modified bool) string {
	if rev == "" {
		return ""
	}
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if modified {
		rev += ".dirty"
	}
	return rev
}

func runGit(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
