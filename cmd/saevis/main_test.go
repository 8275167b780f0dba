package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gnueaj/SAE-vis-sub000"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func project(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "features.csv"),
		[]byte("id,score_fuzz,score_detection\n1,0.9,0.8\n2,0.2,0.9\n3,0.1,0.1\n"), 0644))
	path := filepath.Join(dir, "saevis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: error
table: features.csv
trees:
  fuzz:
    - split: {type: range, metric: score_fuzz, thresholds: [0.5]}
  detection:
    - split: {type: range, metric: score_detection, thresholds: [0.5]}
`), 0644))
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	out := run(t, "version")
	assert.Equal(t, "saevis version "+strings.TrimSpace(saevis.Version)+"\n", out)
}

func TestGraphCommand(t *testing.T) {
	out := run(t, "graph", "fuzz", "--config", project(t), "--item", "1")
	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, "class root_score_fuzz_1 highlight;")
}

func TestFlowCommand(t *testing.T) {
	out := run(t, "flow", "fuzz", "detection", "--config", project(t), "--format", "mermaid")
	assert.Contains(t, out, "fuzz:root_score_fuzz_0,detection:root_score_detection_1,1\n")
	assert.Contains(t, out, "fuzz:root_score_fuzz_1,detection:root_score_detection_1,1\n")
}
