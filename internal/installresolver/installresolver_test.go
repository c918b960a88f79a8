package installresolver

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveUsesInstallDirDirectly(t *testing.T) {
	path, err := Resolve("", "/games/Valheim", 896660)
	require.NoError(t, err)

	want := "Valheim.sh"
	if runtime.GOOS == "windows" {
		want = "Valheim.exe"
	}
	assert.Equal(t, filepath.Join("/games/Valheim", want), path)
}

func TestResolveReadsManifestInstalldir(t *testing.T) {
	dir := t.TempDir()
	steamapps := filepath.Join(dir, "steamapps")
	require.NoError(t, os.MkdirAll(steamapps, 0o755))

	manifest := `"AppState"
{
	"appid"		"896660"
	"Universe"		"1"
	"installdir"		"Valheim"
	"StateFlags"		"4"
}
`
	require.NoError(t, os.WriteFile(filepath.Join(steamapps, "appmanifest_896660.acf"), []byte(manifest), 0o644))

	path, err := Resolve(dir, "", 896660)
	require.NoError(t, err)

	want := "Valheim.sh"
	if runtime.GOOS == "windows" {
		want = "Valheim.exe"
	}
	assert.Equal(t, filepath.Join(steamapps, "common", "Valheim", want), path)
}

func TestResolveErrorsOnMissingManifest(t *testing.T) {
	dir := t.TempDir()
	_, err := Resolve(dir, "", 1)
	assert.Error(t, err)
}

func TestResolveErrorsOnManifestMissingInstalldir(t *testing.T) {
	dir := t.TempDir()
	steamapps := filepath.Join(dir, "steamapps")
	require.NoError(t, os.MkdirAll(steamapps, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(steamapps, "appmanifest_1.acf"), []byte(`"AppState" { "appid" "1" }`), 0o644))

	_, err := Resolve(dir, "", 1)
	assert.Error(t, err)
}
