package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFile_YAML(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "dumpscan.yaml")
	body := `
window_size: 4096
min_string_length: 6
run_policy: fail
signatures:
  - name: ELF
    hex: "7F 45 4C 46"
  - name: PDF
    text: "%PDF"
`
	require.NoError(t, os.WriteFile(fp, []byte(body), 0644))

	cfg, err := LoadConfigFile(fp, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.WindowSize)
	assert.Equal(t, 6, cfg.MinStringLength)
	assert.Equal(t, RunPolicyFail, cfg.RunPolicy)
	// untouched keys keep the base value
	assert.Equal(t, 16, cfg.BytesPerRow)
	assert.Equal(t, DefaultMaxRunLength, cfg.MaxRunLength)
	assert.Equal(t, []Signature{
		{Name: "ELF", Bytes: []byte{0x7F, 'E', 'L', 'F'}},
		{Name: "PDF", Bytes: []byte("%PDF")},
	}, cfg.Signatures)
}

func TestLoadConfigFile_JSONKeepsDefaultSignatures(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "dumpscan.json")
	require.NoError(t, os.WriteFile(fp, []byte(`{"bytes_per_row": 8}`), 0644))

	cfg, err := LoadConfigFile(fp, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.BytesPerRow)
	assert.Len(t, cfg.Signatures, 4)
}

func TestLoadConfigFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfigFile(filepath.Join(dir, "missing.yaml"), DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("signatures:\n  - name: X\n    hex: \"zz\"\n"), 0644))
	_, err = LoadConfigFile(bad, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	policy := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(policy, []byte("run_policy: maybe\n"), 0644))
	_, err = LoadConfigFile(policy, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
