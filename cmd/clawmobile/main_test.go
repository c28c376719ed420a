package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clawmobile/internal/domain"
	"clawmobile/internal/testutil/agentserver"
)

// syncBuffer is a bytes.Buffer safe for handlers writing from other goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// isolate points every command at a fresh sqlite file and a missing config.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CLAWMOBILE_STORAGE_DRIVER", "sqlite")
	t.Setenv("CLAWMOBILE_STORAGE_PATH", filepath.Join(dir, "state.db"))
	t.Setenv("CLAWMOBILE_LOGGER_LEVEL", "error")
	return filepath.Join(dir, "missing.yaml")
}

func run(t *testing.T, configPath, stdin string, args ...string) (string, error) {
	t.Helper()
	out := &syncBuffer{}
	cmd := newRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(&syncBuffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestPairThenStatus(t *testing.T) {
	cfg := isolate(t)
	srv := agentserver.New(t)

	out, err := run(t, cfg, "", "pair", srv.URL, srv.PairingCode, "--name", "lab")
	require.NoError(t, err)
	assert.Contains(t, out, "Paired with "+srv.URL)

	out, err = run(t, cfg, "", "servers", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "* ")
	assert.Contains(t, out, "lab")

	out, err = run(t, cfg, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "● Connected")
	assert.Contains(t, out, "openai (gpt-4o)")
	assert.Contains(t, out, "memory     degraded")
	assert.Contains(t, out, "Breaker:  closed")
	assert.Contains(t, out, "Retry:    10 attempts, gives up after 3m1s")
}

func TestPairWrongCode(t *testing.T) {
	cfg := isolate(t)
	srv := agentserver.New(t)

	_, err := run(t, cfg, "", "pair", srv.URL, "000000")
	require.ErrorIs(t, err, domain.ErrPairingFailed)

	_, err = run(t, cfg, "", "status")
	assert.ErrorIs(t, err, domain.ErrNoServer)
}

func TestLogout(t *testing.T) {
	cfg := isolate(t)
	srv := agentserver.New(t)
	_, err := run(t, cfg, "", "pair", srv.URL, srv.PairingCode)
	require.NoError(t, err)

	_, err = run(t, cfg, "", "logout")
	require.NoError(t, err)

	_, err = run(t, cfg, "", "chat", "hi")
	assert.ErrorIs(t, err, domain.ErrNoServer)
}

func TestChatEcho(t *testing.T) {
	cfg := isolate(t)
	srv := agentserver.New(t)
	t.Setenv("CLAWMOBILE_SERVER_URL", srv.URL)
	t.Setenv("CLAWMOBILE_SERVER_TOKEN", srv.Token)

	out, err := run(t, cfg, "first\n\nsecond\n", "chat", "--plain", "--wait", "5s")
	require.NoError(t, err)
	assert.Contains(t, out, "Agent: first")
	assert.Contains(t, out, "Agent: second")
	assert.Equal(t, []string{"first", "second"}, srv.Received())
}

func TestChatQueuesWhileServerDown(t *testing.T) {
	cfg := isolate(t)
	t.Setenv("CLAWMOBILE_RECONNECT_BASE_DELAY", "10ms")
	t.Setenv("CLAWMOBILE_RECONNECT_MAX_ATTEMPTS", "1")

	dead := agentserver.New(t)
	dead.Close()
	t.Setenv("CLAWMOBILE_SERVER_URL", dead.URL)
	t.Setenv("CLAWMOBILE_SERVER_TOKEN", "test-token")

	_, err := run(t, cfg, "", "chat", "--plain", "while offline")
	require.ErrorIs(t, err, domain.ErrMaxRetries)

	srv := agentserver.New(t)
	t.Setenv("CLAWMOBILE_SERVER_URL", srv.URL)
	t.Setenv("CLAWMOBILE_SERVER_TOKEN", srv.Token)

	out, err := run(t, cfg, "", "chat", "--plain", "--wait", "5s", "back online")
	require.NoError(t, err)
	assert.Contains(t, out, "Agent: while offline")
	require.Eventually(t, func() bool { return len(srv.Received()) == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"while offline", "back online"}, srv.Received())
}

func TestFeedCount(t *testing.T) {
	cfg := isolate(t)
	srv := agentserver.New(t)
	t.Setenv("CLAWMOBILE_SERVER_URL", srv.URL)
	t.Setenv("CLAWMOBILE_SERVER_TOKEN", srv.Token)

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := run(t, cfg, "", "feed", "--count", "2", "--summary")
		done <- result{out, err}
	}()

	require.Eventually(t, func() bool { return srv.Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)
	srv.Publish(domain.FeedEvent{Type: domain.FeedToolCall, Data: map[string]any{"tool": "shell"}, Timestamp: time.Now().UnixMilli()})
	srv.Publish(domain.FeedEvent{Type: domain.FeedAgentEnd, Data: map[string]any{}, Timestamp: time.Now().UnixMilli()})

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Contains(t, r.out, "[tool_call] tool=shell")
		assert.Contains(t, r.out, "[agent_end]")
		assert.Contains(t, r.out, "tool_call    1")
	case <-time.After(5 * time.Second):
		t.Fatal("feed did not exit after two events")
	}
}

func TestCronCommands(t *testing.T) {
	cfg := isolate(t)
	srv := agentserver.New(t)
	t.Setenv("CLAWMOBILE_SERVER_URL", srv.URL)
	t.Setenv("CLAWMOBILE_SERVER_TOKEN", srv.Token)

	_, err := run(t, cfg, "", "cron", "add", "0 9 * * *", "summarize", "inbox")
	require.NoError(t, err)

	out, err := run(t, cfg, "", "cron", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "summarize inbox")

	_, err = run(t, cfg, "", "cron", "add", "every morning", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidCron)
}

func TestAskAndMemory(t *testing.T) {
	cfg := isolate(t)
	srv := agentserver.New(t)
	t.Setenv("CLAWMOBILE_SERVER_URL", srv.URL)
	t.Setenv("CLAWMOBILE_SERVER_TOKEN", srv.Token)

	out, err := run(t, cfg, "", "ask", "--plain", "ping")
	require.NoError(t, err)
	assert.Equal(t, "echo: ping\n", out)

	_, err = run(t, cfg, "", "memory", "add", "--category", "daily", "bought milk")
	require.NoError(t, err)
	out, err = run(t, cfg, "", "memory", "--category", "daily", "milk")
	require.NoError(t, err)
	assert.Contains(t, out, "[daily] bought milk")
}

func TestServersUse(t *testing.T) {
	cfg := isolate(t)

	_, err := run(t, cfg, "", "servers", "add", "a", "http://10.0.0.1:3000")
	require.NoError(t, err)
	out, err := run(t, cfg, "", "servers", "add", "b", "http://10.0.0.2:3000", "--token", "tb")
	require.NoError(t, err)
	id := strings.TrimSuffix(strings.Fields(out)[2], ")")
	id = strings.TrimPrefix(id, "(")

	_, err = run(t, cfg, "", "servers", "use", id)
	require.NoError(t, err)

	out, err = run(t, cfg, "", "servers", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "* "+id)

	_, err = run(t, cfg, "", "servers", "use", "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDiscoverDisabled(t *testing.T) {
	cfg := isolate(t)
	t.Setenv("CLAWMOBILE_DISCOVERY_ENABLED", "false")

	out, err := run(t, cfg, "", "discover")
	require.NoError(t, err)
	assert.Equal(t, "Discovery is disabled.\n", out)
}

func TestEncryptedTokenInConfig(t *testing.T) {
	cfg := isolate(t)
	srv := agentserver.New(t)
	t.Setenv("CLAWMOBILE_CONFIG_KEY", "hunter2")

	out, err := run(t, cfg, "", "encrypt", srv.Token)
	require.NoError(t, err)
	sealed := strings.TrimSpace(out)
	require.True(t, strings.HasPrefix(sealed, "enc:"))

	yaml := "server:\n  url: " + srv.URL + "\n  token: " + sealed + "\n"
	require.NoError(t, os.WriteFile(cfg, []byte(yaml), 0o600))

	out, err = run(t, cfg, "", "ask", "--plain", "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi\n", out)
}

func TestEncryptNeedsKey(t *testing.T) {
	cfg := isolate(t)
	t.Setenv("CLAWMOBILE_CONFIG_KEY", "")

	_, err := run(t, cfg, "", "encrypt", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
