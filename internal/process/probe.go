package process

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// VersionFlags are tried in order when probing a tool's version.
// javac and javadoc accept -version, most GNU tools --version.
var VersionFlags = []string{"-version", "--version"}

// ProbeResult holds what ProbeVersion learned about an executable.
type ProbeResult struct {
	Path    string // Resolved path on PATH
	Version string // First non-empty output line, "" if unknown
}

// LookPath resolves an executable name the same way spawning would.
func LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("executable %q not found: %w", name, err)
	}
	return path, nil
}

// ProbeVersion resolves binary and asks it for a version string.
// A tool that does not understand any version flag still resolves; only
// Version stays empty.
func ProbeVersion(ctx context.Context, binary string) (ProbeResult, error) {
	path, err := LookPath(binary)
	if err != nil {
		return ProbeResult{}, err
	}

	result := ProbeResult{Path: path}
	for _, flag := range VersionFlags {
		// Tools like javac print the version to stderr
		output, err := exec.CommandContext(ctx, path, flag).CombinedOutput()
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			continue
		}
		if v := firstLine(string(output)); v != "" {
			result.Version = v
			break
		}
	}
	return result, nil
}

// firstLine returns the first non-empty trimmed line of s.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
