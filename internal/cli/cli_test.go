package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func localEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CLASSIFIER", "CLASSIFIER_URL", "REDIS_URL", "TUNING_FILE", "DETECTOR", "OUTPUT_SIZE", "REQUEST_TIMEOUT", "MESSAGES_DIR"} {
		t.Setenv(k, "")
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "fenctl version dev")
}

func TestRenderThenAnalyze(t *testing.T) {
	localEnv(t)
	path := filepath.Join(t.TempDir(), "start.png")

	out, err := run(t, "render", startFEN, "-o", path, "--square-size", "64", "--margin", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)
	_, err = os.Stat(path)
	require.NoError(t, err)

	out, err = run(t, "analyze", path, "--corners", "0,0,512,0,512,512,0,512")
	require.NoError(t, err)
	assert.Contains(t, out, startFEN)
	assert.Contains(t, out, "active color: w (low, default)")
}

func TestAnalyzeMissingFile(t *testing.T) {
	localEnv(t)
	_, err := run(t, "analyze", filepath.Join(t.TempDir(), "nope.png"))
	assert.Error(t, err)
}

func TestCheckLocal(t *testing.T) {
	localEnv(t)
	out, err := run(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "local: status=ok classifier=ok cache=disabled")
}
