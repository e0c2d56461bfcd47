package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/emsift/emsift/screen/dock"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "emsift.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_EmptyPath_ReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 4, cfg.Minimize.MaxRetries)
	assert.Equal(t, 200, cfg.Report.Poses)
}

func TestLoadConfig_OverridesOnlyGivenFields(t *testing.T) {
	// GIVEN a file overriding a handful of nested fields
	path := writeConfig(t, `
root: batch
minimize:
  max_retries: 2
  run: [gmx, mdrun, -deffnm, "{base}"]
pocket:
  reference: ref.pdb
  active_radius: 6.5
report:
  format: markdown
  ligands:
    - {name: L-Asn_m1, label: Asn}
`)

	// WHEN it is loaded
	cfg, err := LoadConfig(path)

	// THEN the given fields change and every other field keeps its default
	require.NoError(t, err)
	def := DefaultConfig()
	assert.Equal(t, "batch", cfg.Root)
	assert.Equal(t, 2, cfg.Minimize.MaxRetries)
	assert.Equal(t, []string{"gmx", "mdrun", "-deffnm", "{base}"}, cfg.Minimize.Run)
	assert.Equal(t, def.Minimize.Prepare, cfg.Minimize.Prepare)
	assert.Equal(t, def.Minimize.Markers, cfg.Minimize.Markers)
	assert.Equal(t, "ref.pdb", cfg.Pocket.Reference)
	assert.Equal(t, 6.5, cfg.Pocket.ActiveRadius)
	assert.Equal(t, def.Pocket.LigandRadius, cfg.Pocket.LigandRadius)
	assert.Equal(t, dock.FormatMarkdown, cfg.Report.Format)
	assert.Equal(t, []dock.Ligand{{Name: "L-Asn_m1", Label: "Asn"}}, cfg.Report.Ligands)
	assert.Equal(t, def.Layout, cfg.Layout)
}

func TestLoadConfig_EmptyFile_ReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown top-level key", "roots: batch\n"},
		{"unknown nested key", "layout:\n  prefx: EM\n"},
		{"negative retry budget", "minimize:\n  max_retries: -1\n"},
		{"unsupported report format", "report:\n  format: pdf\n"},
		{"empty run command", "minimize:\n  run: []\n"},
		{"non-positive radius", "pocket:\n  ligand_radius: 0\n"},
		{"ligand without label", "report:\n  ligands:\n    - name: L-Asn_m1\n"},
		{"wrong type", "select:\n  promote: maybe\n"},
		{"identical markers", "minimize:\n  markers:\n    converged: done\n    not_converged: done\n"},
		{"malformed yaml", "root: [batch\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_Marshal_LoadsBackUnchanged(t *testing.T) {
	// GIVEN a non-default configuration rendered as YAML
	cfg := DefaultConfig()
	cfg.Root = "elsewhere"
	cfg.Select.Promote = false
	cfg.Pocket.Reference = "holo.pdb"

	out, err := cfg.Marshal()
	require.NoError(t, err)

	// THEN the output passes the schema and strict decoding and reproduces cfg
	path := writeConfig(t, string(out))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(out, &doc))
	assert.Contains(t, doc, "pocket")
	assert.Contains(t, doc["pocket"], "ligand_radius", "pocket options are inlined")
}

func TestConfigSchema_Compiles(t *testing.T) {
	_, err := compileConfigSchema()

	assert.NoError(t, err)
}
