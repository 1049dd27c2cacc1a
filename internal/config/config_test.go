package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := fromLookup(envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultMeshCells, cfg.MeshCells)
	assert.Equal(t, DefaultBedSize, cfg.BedSize)
	assert.Equal(t, "default", cfg.UserID)
	assert.GreaterOrEqual(t, cfg.Workers, 1)
}

func TestFromLookup_Overrides(t *testing.T) {
	cfg, err := fromLookup(envMap(map[string]string{
		EnvStorage:   "/data",
		EnvWorkers:   "3",
		EnvMeshCells: "128",
		EnvBedSize:   "180",
		EnvLogLevel:  "debug",
	}))
	require.NoError(t, err)
	assert.Equal(t, "/data", cfg.StorageDir)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 128, cfg.MeshCells)
	assert.Equal(t, 180.0, cfg.BedSize)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestFromLookup_RejectsBadNumbers(t *testing.T) {
	_, err := fromLookup(envMap(map[string]string{EnvWorkers: "zero"}))
	assert.Error(t, err)

	_, err = fromLookup(envMap(map[string]string{EnvMeshCells: "1"}))
	assert.Error(t, err)
}

func TestRegisterFlags_OverridesEnv(t *testing.T) {
	cfg := Default()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-bed", "220", "-user", "alice"}))

	assert.Equal(t, 220.0, cfg.BedSize)
	assert.Equal(t, "alice", cfg.UserID)
	assert.NoError(t, cfg.Validate())
}

func TestLoadJSON5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.json5")
	src := `{
		// comments and trailing commas are fine
		name: 'drawer',
		grid: [2, 3,],
	}`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	var v struct {
		Name string `json:"name"`
		Grid []int  `json:"grid"`
	}
	require.NoError(t, LoadJSON5(path, &v))
	assert.Equal(t, "drawer", v.Name)
	assert.Equal(t, []int{2, 3}, v.Grid)
}
