package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alekspetrov/ideabot/internal/adapters/telegram"
	"github.com/alekspetrov/ideabot/internal/config"
	"github.com/alekspetrov/ideabot/internal/idea"
	"github.com/alekspetrov/ideabot/internal/store"
	"github.com/alekspetrov/ideabot/internal/testutil"
)

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	old := cfgFile
	t.Cleanup(func() { cfgFile = old })

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

// TestStartCommandFlags verifies all expected flags exist on the start command
func TestStartCommandFlags(t *testing.T) {
	assertFlags(t, newStartCmd(), "mode", "no-gateway")
}

func TestStatsCommandFlags(t *testing.T) {
	assertFlags(t, newStatsCmd(), "telegram-id", "days", "json")
}

func assertFlags(t *testing.T, cmd *cobra.Command, names ...string) {
	t.Helper()
	for _, name := range names {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("missing flag: --%s", name)
		}
	}
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()

	want := map[string]bool{"start": false, "init": false, "stats": false, "digest": false, "version": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		assert.True(t, found, "missing command %q", name)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "ideabot v"+version+"\n", out)
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ideabot", "config.yaml")

	out, err := execute(t, "--config", path, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "${TELEGRAM_BOT_TOKEN}")

	// A second run leaves the file alone
	out, err = execute(t, "--config", path, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	// --force keeps a backup
	_, err = execute(t, "--config", path, "init", "--force")
	require.NoError(t, err)
	_, err = os.Stat(path + ".bak")
	assert.NoError(t, err)
}

func writeConfig(t *testing.T, dataDir string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "store:\n  driver: sqlite\n  path: " + dataDir + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestStatsCommand(t *testing.T) {
	dataDir := t.TempDir()
	st, err := store.NewSQLiteStore(dataDir)
	require.NoError(t, err)

	ctx := context.Background()
	profile, err := st.GetOrCreateProfile(ctx, store.ProfileInput{TelegramID: 4242, FirstName: "Ada"})
	require.NoError(t, err)
	for _, in := range []store.NewIdea{
		{Input: idea.InputText, Transcript: "Bike lights", Category: "Product"},
		{Input: idea.InputVoice, Transcript: "Seed boxes", Category: "Business"},
		{Input: idea.InputText, Transcript: "Modular shelves", Category: "Product"},
	} {
		in.ProfileID = profile.ID
		_, err := st.CreateIdea(ctx, in)
		require.NoError(t, err)
	}
	require.NoError(t, st.Close())

	path := writeConfig(t, dataDir)

	out, err := execute(t, "--config", path, "stats", "--telegram-id", "4242")
	require.NoError(t, err)
	for _, want := range []string{"Ideas for Ada", "Total:", "3", "From voice:", "Product", "Business"} {
		assert.Contains(t, out, want)
	}

	out, err = execute(t, "--config", path, "stats", "--telegram-id", "4242", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"total": 3`)

	_, err = execute(t, "--config", path, "stats", "--telegram-id", "7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no profile")

	_, err = execute(t, "--config", path, "stats")
	assert.Error(t, err, "telegram-id is required")
}

func TestRenderStatsWithoutCategories(t *testing.T) {
	var buf bytes.Buffer
	renderStats(&buf, &idea.Profile{TelegramID: 99}, &idea.Stats{}, 7)

	out := buf.String()
	assert.Contains(t, out, "Ideas for 99")
	assert.Contains(t, out, "Last 7 days:")
	assert.NotContains(t, out, "Top categories")
}

func TestNewAppWiring(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", testutil.FakeTelegramBotToken)
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", testutil.FakeOpenAIKey)

	cfg, err := config.Load(writeConfig(t, t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	a, err := newApp(cfg, "http://127.0.0.1:1")
	require.NoError(t, err)
	defer a.close()

	assert.Equal(t, []string{"openai"}, a.chain.Providers())
	require.NotNil(t, a.gateway, "gateway is enabled by default")

	rec := httptest.NewRecorder()
	a.gateway.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.gateway.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))

	// Polling mode does not mount the webhook
	rec = httptest.NewRecorder()
	a.gateway.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/telegram", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewAppWebhookMode(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", testutil.FakeTelegramBotToken)
	t.Setenv("OPENAI_API_KEY", testutil.FakeOpenAIKey)

	cfg, err := config.Load(writeConfig(t, t.TempDir()))
	require.NoError(t, err)
	cfg.Telegram.Mode = telegram.ModeWebhook
	cfg.Telegram.WebhookURL = "https://ideas.example.com/webhooks/telegram"
	cfg.Telegram.WebhookSecret = testutil.FakeTelegramWebhookSecret
	cfg.Gateway.Enabled = false
	require.NoError(t, cfg.Validate())

	a, err := newApp(cfg, "http://127.0.0.1:1")
	require.NoError(t, err)
	defer a.close()

	require.NotNil(t, a.gateway, "webhook mode forces the gateway on")

	// Wrong secret is rejected by the mounted webhook handler
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram", strings.NewReader(`{"update_id":1}`))
	req.Header.Set(telegram.SecretTokenHeader, "wrong")
	rec := httptest.NewRecorder()
	a.gateway.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
