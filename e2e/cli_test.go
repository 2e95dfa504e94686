package e2e_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorekeep/scorekeep/internal/api"
	"github.com/scorekeep/scorekeep/internal/factory"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(projectRoot, "bin", "skctl-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/skctl")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
	}
}

func (r *cliRunner) run(args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--actor", "e2e",
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	server   *http.Server
	addr     string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	// Create application
	app, err := factory.New(factory.Config{})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	router := api.NewRouter(api.RouterConfig{
		Logger:          logger,
		IdentityService: app.IdentityService,
		GameService:     app.GameService,
		AccountService:  app.AccountService,
	})

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	// Wait for server to be ready
	serverURL := "http://" + addr
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		server: server,
		addr:   serverURL,
		shutdown: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// Response types for JSON parsing
type identityResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	Aliases     []struct {
		Name string `json:"name"`
	} `json:"aliases"`
	NameHistory []struct {
		Name string `json:"name"`
	} `json:"name_history"`
	Stats struct {
		TotalGames int `json:"total_games"`
		TotalWins  int `json:"total_wins"`
	} `json:"stats"`
}

type searchResponse struct {
	Identities []identityResponse `json:"identities"`
	Total      int                `json:"total"`
}

type gameResponse struct {
	ID      string `json:"id"`
	Players []struct {
		Name       string `json:"name"`
		IdentityID string `json:"identity_id"`
		Score      int    `json:"score"`
	} `json:"players"`
	Winner string `json:"winner"`
}

type mergeResponse struct {
	Target      identityResponse   `json:"target"`
	Merged      []identityResponse `json:"merged"`
	Propagation []struct {
		Collection string `json:"collection"`
		Updated    int    `json:"updated"`
	} `json:"propagation"`
}

type registerResponse struct {
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
	Identity        identityResponse `json:"identity"`
	IdentityCreated bool             `json:"identity_created"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)

	var resp healthResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCLI_IdentityCommands(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Resolve creates a guest identity
	output, err := cli.run("identity", "resolve", "Alice")
	require.NoError(t, err, "output: %s", output)

	var alice identityResponse
	require.NoError(t, json.Unmarshal([]byte(output), &alice))
	assert.Equal(t, "Alice", alice.DisplayName)
	assert.Equal(t, "guest", alice.Kind)

	// Resolving again is idempotent
	output, err = cli.run("identity", "resolve", "ALICE")
	require.NoError(t, err, "output: %s", output)

	var again identityResponse
	require.NoError(t, json.Unmarshal([]byte(output), &again))
	assert.Equal(t, alice.ID, again.ID)

	// Rename keeps the old name in history
	output, err = cli.run("identity", "rename", alice.ID, "Alicia")
	require.NoError(t, err, "output: %s", output)

	var renamed identityResponse
	require.NoError(t, json.Unmarshal([]byte(output), &renamed))
	assert.Equal(t, "Alicia", renamed.DisplayName)
	require.Len(t, renamed.NameHistory, 1)

	// Alias management
	output, err = cli.run("identity", "alias", "add", alice.ID, "Ali")
	require.NoError(t, err, "output: %s", output)

	var withAlias identityResponse
	require.NoError(t, json.Unmarshal([]byte(output), &withAlias))
	require.Len(t, withAlias.Aliases, 1)

	// Search finds both names
	output, err = cli.run("identity", "search", "ali")
	require.NoError(t, err, "output: %s", output)

	var search searchResponse
	require.NoError(t, json.Unmarshal([]byte(output), &search))
	assert.Equal(t, 1, search.Total)
}

func TestCLI_GameAndMerge(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("game", "record", "table_games", "Robert=21", "Dana=15")
	require.NoError(t, err, "output: %s", output)

	var game gameResponse
	require.NoError(t, json.Unmarshal([]byte(output), &game))
	require.Len(t, game.Players, 2)
	robertID := game.Players[0].IdentityID
	assert.Equal(t, robertID, game.Winner)

	output, err = cli.run("identity", "resolve", "Bob")
	require.NoError(t, err, "output: %s", output)
	var bob identityResponse
	require.NoError(t, json.Unmarshal([]byte(output), &bob))

	// Merge Bob into Robert
	output, err = cli.run("identity", "merge", robertID, bob.ID)
	require.NoError(t, err, "output: %s", output)

	var merged mergeResponse
	require.NoError(t, json.Unmarshal([]byte(output), &merged))
	require.Len(t, merged.Merged, 1)
	assert.Equal(t, "merged", merged.Merged[0].Status)

	// Games list for the surviving identity
	output, err = cli.run("game", "list", "table_games", robertID)
	require.NoError(t, err, "output: %s", output)
	assert.Contains(t, output, game.ID)
}

func TestCLI_UserRegistration(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Seed a guest with some games
	output, err := cli.run("game", "record", "ranked_games", "Carol=9", "Dana=4")
	require.NoError(t, err, "output: %s", output)

	var game gameResponse
	require.NoError(t, json.Unmarshal([]byte(output), &game))
	carolID := game.Players[0].IdentityID

	// Registration claims the guest identity
	output, err = cli.run("user", "register", "Carol", "secret123")
	require.NoError(t, err, "output: %s", output)

	var reg registerResponse
	require.NoError(t, json.Unmarshal([]byte(output), &reg))
	assert.False(t, reg.IdentityCreated)
	assert.Equal(t, carolID, reg.Identity.ID)
	assert.Equal(t, "user", reg.Identity.Kind)
	assert.Equal(t, 1, reg.Identity.Stats.TotalGames)
}
