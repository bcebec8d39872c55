package cmd

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/domain"
	"github.com/CJStryker/T2Tmud-telnet-client-2/internal/version"
)

func TestProfilesAddRequiresPasswordFlag(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "profiles", "add", "--name", "Marchos")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag(s) \"password\" not set")
}

func TestProfilesListWithoutProfiles(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "profiles", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "profiles: 0")
	assert.Contains(t, stdout, "No profiles configured.")
}

func TestProfilesAddListRemove(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "profiles", "add", "--name", "Marchos", "--password", "mellon")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Saved profile Marchos (password in t2t/marchos/password)")

	_, _, err = executeCLI(t, home, "profiles", "add", "--name", "Zesty", "--password", "zest")
	require.NoError(t, err)

	stdout, _, err = executeCLI(t, home, "profiles", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "profiles: 2")
	assert.Contains(t, stdout, "Marchos (next)")
	assert.Contains(t, stdout, "password: secret store (t2t/zesty/password)")
	assert.NotContains(t, stdout, "mellon")

	data, err := os.ReadFile(filepath.Join(home, ".t2t", "profiles.toml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "mellon")

	stdout, _, err = executeCLI(t, home, "profiles", "remove", "--name", "marchos")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Removed profile marchos")

	stdout, _, err = executeCLI(t, home, "profiles", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "profiles: 1")
	assert.Contains(t, stdout, "Zesty (next)")
}

func TestProfilesListMarksConfiguredStartProfile(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeProfilesFixture(home))
	t.Setenv("T2T_PROFILES_START", "zesty")

	stdout, _, err := executeCLI(t, home, "profiles", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Zesty (next)")
	assert.Contains(t, stdout, "password: inline in profiles.toml")
}

func TestProfilesRemoveUnknown(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "profiles", "remove", "--name", "Gandalf")
	require.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", stdout)
}

func TestInvalidConfigFailsEveryCommand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("T2T_SERVER_PORT", "0")

	_, _, err := executeCLI(t, home, "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port 0 is out of range")
}

func TestRunWithoutProfiles(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "run", "--no-oracle")
	require.ErrorIs(t, err, domain.ErrNoProfiles)
	assert.Contains(t, err.Error(), "t2t profiles add")
}

func TestRunStopsOnUnreadableKnowledgeFile(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeProfilesFixture(home))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan struct{}, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		accepted <- struct{}{}
		_ = conn.Close()
	}()

	port := strconv.Itoa(listener.Addr().(*net.TCPAddr).Port)
	missing := filepath.Join(home, "missing.yaml")
	stdout, _, err := executeCLI(t, home, "run", "--host", "127.0.0.1", "--port", port, "--knowledge", missing)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "load knowledge")
	assert.NotContains(t, stdout, "Connecting to")
	select {
	case <-accepted:
		t.Fatal("run dialed the MUD despite the unreadable knowledge file")
	default:
	}
}

func TestOraclePingPrintsParsedCommands(t *testing.T) {
	prompts := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var body bytes.Buffer
		_, _ = body.ReadFrom(r.Body)
		prompts <- body.String()
		_, _ = w.Write([]byte(`{"response":"{\"commands\":[\"look\",\"score\"],\"comment\":\"ready\"}","done":true}` + "\n"))
	}))
	defer server.Close()

	stdout, _, err := executeCLI(t, t.TempDir(), "oracle", "ping", "--url", server.URL, "--model", "llama3")
	require.NoError(t, err)
	assert.Contains(t, stdout, "model: llama3")
	assert.Contains(t, stdout, "comment: ready")
	assert.Contains(t, stdout, "command: look")
	assert.Contains(t, stdout, "command: score")
	prompt := <-prompts
	assert.Contains(t, prompt, "connectivity check before play")
	assert.Contains(t, prompt, "Useful commands")
}

func TestOraclePingReportsUnavailableBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()
	t.Setenv("T2T_ORACLE_MAX_RETRIES", "0")

	_, _, err := executeCLI(t, t.TempDir(), "oracle", "ping", "--url", server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOracleUnavailable)
	assert.Contains(t, err.Error(), "ping oracle "+server.URL+"/api/generate")
}

func TestRunLogsInAndReportsStatusOnShutdown(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeProfilesFixture(home))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	received := make(chan []string, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		var lines []string
		_, _ = conn.Write([]byte("Welcome to The Two Towers.\nBy what name do you wish to be known? "))
		line, _ := reader.ReadString('\n')
		lines = append(lines, line)
		_, _ = conn.Write([]byte("What is your password? "))
		line, _ = reader.ReadString('\n')
		lines = append(lines, line)
		_, _ = conn.Write([]byte("You are standing in the Prancing Pony.\nHP: 42 EP: 17 > "))
		received <- lines
		<-ctx.Done()
	}()

	go func() {
		select {
		case <-received:
			time.Sleep(200 * time.Millisecond)
		case <-ctx.Done():
		}
		cancel()
	}()

	port := strconv.Itoa(listener.Addr().(*net.TCPAddr).Port)
	stdout, _, err := executeCLIContext(t, ctx, home, "run", "--no-oracle", "--host", "127.0.0.1", "--port", port, "--profile", "marchos")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Connecting to 127.0.0.1:"+port+" as Marchos")
	assert.Contains(t, stdout, "Prancing Pony")
	assert.Contains(t, stdout, "state: disconnected")
	assert.Contains(t, stdout, "location: Prancing Pony")
	assert.Contains(t, stdout, "vitals: HP 42 EP 17")
	assert.NotContains(t, stdout, "mellon")
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	return executeCLIContext(t, context.Background(), home, args...)
}

func executeCLIContext(t *testing.T, ctx context.Context, home string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func writeProfilesFixture(home string) error {
	configDir := filepath.Join(home, ".t2t")
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return err
	}

	profiles := `version = 1

[[profiles]]
username = "Marchos"
password = "mellon"

[[profiles]]
username = "Zesty"
password = "zest"
`

	return os.WriteFile(filepath.Join(configDir, "profiles.toml"), []byte(profiles), 0o600)
}
