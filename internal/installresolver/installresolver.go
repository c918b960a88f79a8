// Package installresolver resolves the game server's executable path,
// either directly from an operator-supplied install directory or by
// parsing the Steam install manifest (.acf, Valve's "VDF" key/value
// format). No VDF parser is available, so this hand-rolled scanner is a
// stdlib-only component by necessity, not by default (see DESIGN.md).
package installresolver

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Resolve returns the absolute path to the game server's executable.
// If installDir is non-empty it is used directly as the game directory and
// the executable name is derived from its base name. Otherwise steamPath
// must point at a Steam library root; the app's appmanifest_<appID>.acf is
// read for its AppState.installdir key.
func Resolve(steamPath, installDir string, appID int) (string, error) {
	gameDir := installDir
	if gameDir == "" {
		manifestPath := filepath.Join(steamPath, "steamapps", fmt.Sprintf("appmanifest_%d.acf", appID))
		dir, err := installDirFromManifest(manifestPath)
		if err != nil {
			return "", fmt.Errorf("installresolver: %w", err)
		}
		gameDir = filepath.Join(steamPath, "steamapps", "common", dir)
	}

	name := filepath.Base(gameDir)
	ext := ""
	if runtime.GOOS == "windows" {
		ext = ".exe"
	} else {
		ext = ".sh"
	}

	return filepath.Join(gameDir, name+ext), nil
}

// installDirFromManifest scans an .acf file for the AppState.installdir
// value. The format is Valve's VDF: nested "key" "value" pairs inside
// brace-delimited blocks. Nesting is not tracked: the first "installdir"
// key found (case-insensitive) at any depth is returned.
func installDirFromManifest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("read manifest %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := parseVDFLine(scanner.Text())
		if !ok {
			continue
		}
		if strings.EqualFold(key, "installdir") {
			return value, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan manifest %s: %w", path, err)
	}
	return "", fmt.Errorf("manifest %s: AppState.installdir not found", path)
}

// parseVDFLine extracts a quoted "key" "value" pair from a single VDF
// line, ignoring brace-only lines and lines with only a key (the start of
// a nested block).
func parseVDFLine(line string) (key, value string, ok bool) {
	fields := splitQuoted(line)
	if len(fields) != 2 {
		return "", "", false
	}
	return fields[0], fields[1], true
}

// splitQuoted returns the contents of each "..."-quoted token on the line.
func splitQuoted(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			if inQuotes {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
			inQuotes = !inQuotes
		case inQuotes:
			cur.WriteRune(r)
		}
	}
	return tokens
}
