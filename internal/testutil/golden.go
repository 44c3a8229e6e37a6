// Package testutil holds golden-file helpers and job fixtures shared by
// tests.
package testutil

import (
	"flag"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var update = flag.Bool("update", false, "rewrite golden files with current output")

// Scrubber rewrites volatile parts of output before comparison.
type Scrubber func(string) string

// AssertGolden compares got with testdata/<name>.golden after Normalize and
// the given scrubbers. Run with -update to rewrite the file instead.
func AssertGolden(t testing.TB, name, got string, scrub ...Scrubber) {
	t.Helper()
	path := filepath.Join("testdata", name+".golden")
	got = clean(got, scrub)

	if *update {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(got+"\n"), 0o600))
		t.Logf("updated %s", path)
		return
	}

	want, err := os.ReadFile(path)
	require.NoError(t, err, "golden file %s (run with -update to create it)", path)
	assert.Equal(t, clean(string(want), scrub), got, "output differs from %s", path)
}

func clean(s string, scrub []Scrubber) string {
	s = Normalize(s)
	for _, fn := range scrub {
		s = fn(s)
	}
	return s
}

// Normalize unifies line endings and drops trailing whitespace.
func Normalize(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

var (
	timestampRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}[^\s"]*( UTC)?`)
	jobIDRe     = regexp.MustCompile(`_\d{8}_\d{6}_[0-9a-f]{8}\b`)
)

// ScrubTimestamps replaces ISO and "2006-01-02 15:04:05" timestamps.
func ScrubTimestamps(s string) string {
	return timestampRe.ReplaceAllString(s, "[TIMESTAMP]")
}

// ScrubJobIDs replaces the generated suffix of job ids, keeping the name.
func ScrubJobIDs(s string) string {
	return jobIDRe.ReplaceAllString(s, "_[ID]")
}
