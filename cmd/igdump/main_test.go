package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/igdump/internal/testutil"
	"github.com/Sternrassler/igdump/pkg/client"
	"github.com/Sternrassler/igdump/pkg/sink"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"IG_SESSION_ID", "IG_USER_ID", "IG_USER_NAME", "IGDUMP_NUM_THREADS",
		"IGDUMP_LOG_LEVEL", "IGDUMP_OUTPUT", "IGDUMP_DB_DSN", "IGDUMP_SERIAL",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func seededMock(t *testing.T, n int) (*testutil.MockInstagram, []testutil.Account) {
	t.Helper()
	mock := testutil.NewMockInstagram()
	t.Cleanup(mock.Close)
	following := testutil.Accounts("acct", 100, n)
	mock.Seed(testutil.Account{ID: 1, Username: "subject"}, following, 200)
	return mock, following
}

func TestMissingCredentialsFailBeforeNetwork(t *testing.T) {
	clearEnv(t)
	mock, _ := seededMock(t, 3)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no session", []string{"-i", "1", "-n", "subject"}, "session id is required"},
		{"no user id", []string{"-s", "sess", "-n", "subject"}, "user id is required"},
		{"bad user id", []string{"-s", "sess", "-i", "-4", "-n", "subject"}, "positive integer"},
		{"no user name", []string{"-s", "sess", "-i", "1"}, "user name is required"},
		{"negative threads", []string{"-s", "sess", "-i", "1", "-n", "subject", "-t", "-1"}, "threads"},
		{"bad output", []string{"-s", "sess", "-i", "1", "-n", "subject", "--output", "csv"}, "unknown output"},
		{"bad log level", []string{"-s", "sess", "-i", "1", "-n", "subject", "-l", "loud"}, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(tt.args, "--base-url", mock.URL())
			_, _, err := execute(t, args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}

	if n := len(mock.ProfileRequests()); n != 0 {
		t.Errorf("profile requests = %d, want 0", n)
	}
	if n := len(mock.PageOffsets()); n != 0 {
		t.Errorf("page requests = %d, want 0", n)
	}
}

func decodeProfiles(t *testing.T, stdout string) []client.Profile {
	t.Helper()
	var profiles []client.Profile
	if err := json.Unmarshal([]byte(stdout), &profiles); err != nil {
		t.Fatalf("stdout is not a JSON array of profiles: %v", err)
	}
	return profiles
}

func TestStreamOutput(t *testing.T) {
	clearEnv(t)
	mock, following := seededMock(t, 7)

	stdout, _, err := execute(t,
		"-s", "sess", "-i", "99", "-n", "subject",
		"--output", "stream", "-t", "3",
		"--base-url", mock.URL(),
	)
	if err != nil {
		t.Fatalf("execute() error = %v", err)
	}

	profiles := decodeProfiles(t, stdout)
	if len(profiles) != len(following) {
		t.Fatalf("profiles = %d, want %d", len(profiles), len(following))
	}
	if profiles[0].Username != following[0].Username {
		t.Errorf("first profile = %q, want %q", profiles[0].Username, following[0].Username)
	}
	if got := mock.LastRequestHeader.Get("Cookie"); got != "sessionid=sess; ds_user_id=99;" {
		t.Errorf("Cookie = %q", got)
	}
}

func TestEnvFallback(t *testing.T) {
	clearEnv(t)
	mock, following := seededMock(t, 4)

	t.Setenv("IG_SESSION_ID", "from-env")
	t.Setenv("IG_USER_ID", "5")
	t.Setenv("IG_USER_NAME", "subject")
	t.Setenv("IGDUMP_NUM_THREADS", "2")
	t.Setenv("IGDUMP_OUTPUT", "stream")

	stdout, _, err := execute(t, "--base-url", mock.URL())
	if err != nil {
		t.Fatalf("execute() error = %v", err)
	}

	if profiles := decodeProfiles(t, stdout); len(profiles) != len(following) {
		t.Errorf("profiles = %d, want %d", len(profiles), len(following))
	}
	if got := mock.MaxInFlight(); got > 2 {
		t.Errorf("max in flight = %d, want <= 2", got)
	}
	if got := mock.LastRequestHeader.Get("Cookie"); got != "sessionid=from-env; ds_user_id=5;" {
		t.Errorf("Cookie = %q", got)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	mock, _ := seededMock(t, 2)

	t.Setenv("IG_SESSION_ID", "from-env")
	t.Setenv("IG_USER_ID", "5")
	t.Setenv("IG_USER_NAME", "subject")

	if _, _, err := execute(t, "-s", "from-flag", "--output", "stream", "--base-url", mock.URL()); err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	if got := mock.LastRequestHeader.Get("Cookie"); got != "sessionid=from-flag; ds_user_id=5;" {
		t.Errorf("Cookie = %q", got)
	}
}

func TestTableOutputWithVerify(t *testing.T) {
	clearEnv(t)
	mock, following := seededMock(t, 250)
	dsn := filepath.Join(t.TempDir(), "following.sqlite3")
	metricsFile := filepath.Join(t.TempDir(), "igdump.prom")

	_, stderr, err := execute(t,
		"-s", "sess", "-i", "1", "-n", "subject",
		"--serial", "--db-dsn", dsn, "--verify",
		"--metrics-file", metricsFile,
		"--base-url", mock.URL(),
	)
	if err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	if !strings.Contains(stderr, `"run_id"`) {
		t.Error("log lines should carry run_id")
	}
	if strings.Contains(stderr, "sess;") {
		t.Error("session id must not be logged")
	}

	db, err := sink.OpenTable(context.Background(), sink.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("OpenTable() error = %v", err)
	}
	defer db.Close()

	rows, err := sink.ReadTable(context.Background(), db, sink.DefaultTable)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if len(rows) != len(following) {
		t.Errorf("rows = %d, want %d", len(rows), len(following))
	}
	if got := mock.MaxInFlight(); got != 1 {
		t.Errorf("max in flight = %d, want 1 in serial mode", got)
	}

	data, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatalf("read metrics file: %v", err)
	}
	if !strings.Contains(string(data), "igdump_rows_written_total") {
		t.Error("metrics file lacks igdump_rows_written_total")
	}
}

func TestTableOutputExistingTableFails(t *testing.T) {
	clearEnv(t)
	mock, _ := seededMock(t, 3)
	dsn := filepath.Join(t.TempDir(), "following.sqlite3")
	args := []string{"-s", "sess", "-i", "1", "-n", "subject", "--db-dsn", dsn, "--base-url", mock.URL()}

	if _, _, err := execute(t, args...); err != nil {
		t.Fatalf("first run error = %v", err)
	}

	_, stderr, err := execute(t, args...)
	if !errors.Is(err, sink.ErrStorage) {
		t.Fatalf("second run error = %v, want ErrStorage", err)
	}
	if !strings.Contains(stderr, "Dump failed") {
		t.Error("failure should be logged")
	}
}

func TestTableOutputFailedRunLeavesNoDatabase(t *testing.T) {
	clearEnv(t)
	mock, following := seededMock(t, 5)
	mock.SetProfileResponse(following[2].Username, testutil.NewServerErrorResponse())
	dsn := filepath.Join(t.TempDir(), "following.sqlite3")

	_, _, err := execute(t,
		"-s", "sess", "-i", "1", "-n", "subject", "--db-dsn", dsn,
		"--base-url", mock.URL(),
	)
	if !errors.Is(err, client.ErrRemote) {
		t.Fatalf("error = %v, want ErrRemote", err)
	}
	if _, err := os.Stat(dsn); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("database file should not exist after a failed run: %v", err)
	}
}

func TestRemoteErrorFailsRun(t *testing.T) {
	clearEnv(t)
	mock, following := seededMock(t, 10)
	mock.SetProfileResponse(following[4].Username, testutil.NewServerErrorResponse())

	stdout, stderr, err := execute(t,
		"-s", "sess", "-i", "1", "-n", "subject", "--output", "stream",
		"--base-url", mock.URL(),
	)
	if !errors.Is(err, client.ErrRemote) {
		t.Fatalf("error = %v, want ErrRemote", err)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want nothing on failure", stdout)
	}
	if !strings.Contains(stderr, `"error_class":"server"`) {
		t.Errorf("stderr lacks error_class: %s", stderr)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	if err := loadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}

	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("IG_USER_NAME=dotenv-user\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv() error = %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("IG_USER_NAME") })

	if got := os.Getenv("IG_USER_NAME"); got != "dotenv-user" {
		t.Errorf("IG_USER_NAME = %q, want dotenv-user", got)
	}
}
