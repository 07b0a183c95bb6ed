package internal

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	in := `re:^a.*$|foo/bar:*?"<>|`
	out := Sanitize(in)
	if strings.ContainsAny(out, `/:*?"<>|`) {
		t.Fatalf("sanitize failed: %q", out)
	}
}

func TestResultSink_Stdout(t *testing.T) {
	var buf bytes.Buffer
	var stats AppStats
	rs := NewResultSink(ScanOptions{}, &buf, &stats)
	s := rs.Sink()
	require.NotNil(t, s.Hex)
	require.NotNil(t, s.Strings)
	require.NotNil(t, s.Patterns)

	s.Hex("a.bin", "00000000  41  |A|\n")
	s.Strings(Finding{Kind: KindString, Source: "a.bin", Text: "TEST", Offset: 20, Length: 4})
	s.Patterns(Finding{Kind: KindSignature, Source: "a.bin", Name: "PDF", Offset: 100, Length: 4})

	assert.Equal(t, "00000000  41  |A|\n"+
		"ASCII String 'TEST' found at 0x14\n"+
		"Pattern 'PDF' found at 0x64\n", buf.String())
	assert.EqualValues(t, 1, stats.Strings.Load())
	assert.EqualValues(t, 1, stats.Patterns.Load())
	require.NoError(t, rs.Close())
}

func TestResultSink_DisabledChannels(t *testing.T) {
	var stats AppStats
	s := NewResultSink(ScanOptions{NoHex: true, NoPatterns: true}, &bytes.Buffer{}, &stats).Sink()
	assert.Nil(t, s.Hex)
	assert.NotNil(t, s.Strings)
	assert.Nil(t, s.Patterns)
}

func TestResultSink_WritesFiles(t *testing.T) {
	dir := t.TempDir()
	opts := ScanOptions{
		SaveFindingsFile: filepath.Join(dir, "all.txt"),
		OutDir:           filepath.Join(dir, "by"),
	}
	var stats AppStats
	var stdout bytes.Buffer
	rs := NewResultSink(opts, &stdout, &stats)
	s := rs.Sink()

	s.Hex("/var/dump.bin", "HEX\n")
	s.Strings(Finding{Kind: KindString, Source: "/var/dump.bin", Text: "hello", Offset: 1, Length: 5})
	s.Patterns(Finding{Kind: KindSignature, Source: "/var/dump.bin", Name: "ZIP", Offset: 16, Length: 4})
	require.NoError(t, rs.Close())

	assert.Empty(t, stdout.String(), "out-dir mode must not print to stdout")

	all, err := os.ReadFile(opts.SaveFindingsFile)
	require.NoError(t, err)
	assert.Equal(t, "/var/dump.bin\tASCII String 'hello' found at 0x1\n/var/dump.bin\tPattern 'ZIP' found at 0x10\n", string(all))

	base := OutputBase(opts.OutDir, "/var/dump.bin")
	hex, err := os.ReadFile(base + ".hex")
	require.NoError(t, err)
	assert.Equal(t, "HEX\n", string(hex))
	strs, err := os.ReadFile(base + ".strings.txt")
	require.NoError(t, err)
	assert.Equal(t, "ASCII String 'hello' found at 0x1\n", string(strs))
	pats, err := os.ReadFile(base + ".patterns.txt")
	require.NoError(t, err)
	assert.Equal(t, "Pattern 'ZIP' found at 0x10\n", string(pats))
}

func TestResultSink_ErrorCounts(t *testing.T) {
	var stats AppStats
	rs := NewResultSink(ScanOptions{}, &bytes.Buffer{}, &stats)
	rs.Error("x.bin", &ScanError{Source: "x.bin", Op: "read", Offset: 4, Err: ErrSourceUnavailable})
	assert.EqualValues(t, 1, stats.Errors.Load())
	assert.Contains(t, rs.Summary(), "Errors: 1")
}

func TestOutputBase_DistinctForCollidingNames(t *testing.T) {
	dir := t.TempDir()
	a, b := OutputBase(dir, "a/b.bin"), OutputBase(dir, "a_b.bin")
	assert.Equal(t, Sanitize("a/b.bin"), Sanitize("a_b.bin"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, OutputBase(dir, "a/b.bin"))
	assert.Equal(t, dir, filepath.Dir(a))

	var stats AppStats
	rs := NewResultSink(ScanOptions{OutDir: dir, NoHex: true, NoStrings: true}, &bytes.Buffer{}, &stats)
	s := rs.Sink()
	s.Patterns(Finding{Kind: KindSignature, Source: "a/b.bin", Name: "PDF", Offset: 1, Length: 4})
	s.Patterns(Finding{Kind: KindSignature, Source: "a_b.bin", Name: "PNG", Offset: 2, Length: 4})
	require.NoError(t, rs.Close())

	got, err := os.ReadFile(a + ".patterns.txt")
	require.NoError(t, err)
	assert.Equal(t, "Pattern 'PDF' found at 0x1\n", string(got))
	got, err = os.ReadFile(b + ".patterns.txt")
	require.NoError(t, err)
	assert.Equal(t, "Pattern 'PNG' found at 0x2\n", string(got))
}

func TestResultSink_DoneReleasesFiles(t *testing.T) {
	dir := t.TempDir()
	var stats AppStats
	rs := NewResultSink(ScanOptions{OutDir: dir}, &bytes.Buffer{}, &stats)
	s := rs.Sink()
	s.Hex("x.bin", "HEX\n")
	s.Strings(Finding{Kind: KindString, Source: "x.bin", Text: "abcd", Length: 4})
	s.Hex("y.bin", "HEX\n")
	assert.Equal(t, 3, rs.OpenFiles())

	rs.Done("x.bin")
	assert.Equal(t, 1, rs.OpenFiles())
	rs.Done("x.bin")
	assert.Equal(t, 1, rs.OpenFiles())
	require.NoError(t, rs.Close())
	assert.Equal(t, 0, rs.OpenFiles())
	assert.EqualValues(t, 0, stats.Errors.Load())

	got, err := os.ReadFile(OutputBase(dir, "x.bin") + ".strings.txt")
	require.NoError(t, err)
	assert.Equal(t, "ASCII String 'abcd' found at 0x0\n", string(got))
}

func TestResultSink_OutputFailuresCount(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	var stats AppStats
	rs := NewResultSink(ScanOptions{
		OutDir:           blocker,
		SaveFindingsFile: filepath.Join(blocker, "all.txt"),
	}, &bytes.Buffer{}, &stats)
	s := rs.Sink()
	s.Hex("x.bin", "HEX\n")
	s.Patterns(Finding{Kind: KindSignature, Source: "x.bin", Name: "PDF", Length: 4})
	require.NoError(t, rs.Close())

	// hex file, patterns file and the combined findings file
	assert.EqualValues(t, 3, stats.Errors.Load())
	assert.Equal(t, 0, rs.OpenFiles())
	assert.Contains(t, rs.Summary(), "Errors: 3")
}
