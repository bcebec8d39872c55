package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)

	_, stderr, err := runT2T(t, binaryPath, home,
		"profiles", "add",
		"--name", "Marchos",
		"--password", "mellon",
	)
	require.NoError(t, err, "stderr: %s", stderr)

	stdout, stderr, err := runT2T(t, binaryPath, home, "profiles", "list")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Marchos (next)")
	assert.Contains(t, stdout, "password: secret store (t2t/marchos/password)")

	_, _, err = runT2T(t, binaryPath, home, "run", "--no-oracle", "--profile", "Gandalf")
	require.Error(t, err)
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "t2t-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/t2t")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build t2t binary: %s", string(output))
	return binaryPath
}

func runT2T(t *testing.T, binaryPath, home string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}
