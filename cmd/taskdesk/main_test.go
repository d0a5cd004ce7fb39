package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/taskdesk/internal/auth"
	"github.com/nerrad567/taskdesk/internal/infrastructure/database"
)

// writeConfig writes a minimal config with a temp database and returns its
// path and the database path.
func writeConfig(t *testing.T, port int, extra string) (string, string) {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	dbPath := filepath.Join(tmpDir, "taskdesk.db")

	content := `
database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

api:
  host: "127.0.0.1"
  port: ` + strconv.Itoa(port) + `
  uploads:
    dir: "` + filepath.Join(tmpDir, "uploads") + `"
    max_size_mib: 5

logging:
  level: error
  format: text
  output: stderr

security:
  jwt:
    secret: "test-secret-key-at-least-32-characters-long"
    token_ttl_days: 30
  password:
    time: 1
    memory_kib: 19456
    threads: 1
` + extra
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath, dbPath
}

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr bool
	}{
		{"no args", nil, options{}, false},
		{"config flag", []string{"--config", "x.yaml"}, options{configPath: "x.yaml"}, false},
		{"short config flag", []string{"-c", "x.yaml"}, options{configPath: "x.yaml"}, false},
		{"version", []string{"--version"}, options{showVersion: true}, false},
		{"serve", []string{"serve"}, options{command: "serve", args: []string{}}, false},
		{"promote", []string{"promote", "bob@example.com"}, options{command: "promote", args: []string{"bob@example.com"}}, false},
		{"promote without email", []string{"promote"}, options{}, true},
		{"promote with extra", []string{"promote", "a@example.com", "b@example.com"}, options{}, true},
		{"unknown command", []string{"frobnicate"}, options{}, true},
		{"unknown flag", []string{"--nope"}, options{}, true},
		{"serve with extra", []string{"serve", "now"}, options{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.args, io.Discard)
			if tt.wantErr {
				if !errors.Is(err, errUsage) {
					t.Fatalf("parseArgs() error = %v, want errUsage", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseArgs() error = %v", err)
			}
			if got.configPath != tt.want.configPath || got.showVersion != tt.want.showVersion ||
				got.command != tt.want.command || strings.Join(got.args, " ") != strings.Join(tt.want.args, " ") {
				t.Errorf("parseArgs() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseArgs_Help(t *testing.T) {
	if _, err := parseArgs([]string{"--help"}, io.Discard); !errors.Is(err, pflag.ErrHelp) {
		t.Errorf("parseArgs(--help) error = %v, want pflag.ErrHelp", err)
	}
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"--version"}, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "taskdesk "+version) {
		t.Errorf("output = %q, want taskdesk %s prefix", out.String(), version)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	err := run(context.Background(), []string{"--config", "/nonexistent/path/config.yaml"}, io.Discard)
	if err == nil {
		t.Fatal("run() should fail with a missing explicit config")
	}
}

func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("TASKDESK_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("TASKDESK_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing default falls back to built-in settings", func(t *testing.T) {
		t.Setenv("TASKDESK_CONFIG", "")
		wd, err := os.Getwd()
		if err != nil {
			t.Fatalf("getwd: %v", err)
		}
		if err := os.Chdir(t.TempDir()); err != nil {
			t.Fatalf("chdir: %v", err)
		}
		t.Cleanup(func() { _ = os.Chdir(wd) })

		cfg, source, err := loadConfig("")
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if source != "(built-in defaults)" {
			t.Errorf("source = %q", source)
		}
		if !cfg.UsesInsecureSecret() && os.Getenv("TASKDESK_JWT_SECRET") == "" {
			t.Error("built-in defaults should use the insecure secret")
		}
	})

	t.Run("missing env-named file is an error", func(t *testing.T) {
		t.Setenv("TASKDESK_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
		if _, _, err := loadConfig(""); err == nil {
			t.Error("loadConfig() should fail for a missing TASKDESK_CONFIG file")
		}
	})

	t.Run("flag wins over env", func(t *testing.T) {
		path, _ := writeConfig(t, 3000, "")
		t.Setenv("TASKDESK_CONFIG", "/nonexistent.yaml")

		_, source, err := loadConfig(path)
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if source != path {
			t.Errorf("source = %q, want %q", source, path)
		}
	})
}

func TestRun_Promote(t *testing.T) {
	configPath, dbPath := writeConfig(t, 3000, "")
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	users := auth.NewUserRepository(db.DB)
	if err := users.Create(ctx, &auth.User{
		Email:        "bob@example.com",
		PasswordHash: "unused",
		Role:         auth.RoleUser,
		Name:         "Bob",
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	db.Close()

	var out bytes.Buffer
	if err := run(ctx, []string{"--config", configPath, "promote", "Bob@Example.com"}, &out); err != nil {
		t.Fatalf("run(promote) error = %v", err)
	}
	if !strings.Contains(out.String(), "bob@example.com is now an admin") {
		t.Errorf("output = %q", out.String())
	}

	db, err = database.Open(ctx, database.Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	defer db.Close()
	bob, err := auth.NewUserRepository(db.DB).GetByEmail(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if bob.Role != auth.RoleAdmin {
		t.Errorf("role = %q, want admin", bob.Role)
	}

	if err := run(ctx, []string{"--config", configPath, "promote", "nobody@example.com"}, io.Discard); err == nil {
		t.Error("run(promote) for an unknown email should fail")
	}
}

// TestRun_ServeAndShutdown starts the full server with MQTT and InfluxDB
// disabled, then cancels the context.
func TestRun_ServeAndShutdown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping full startup in short mode")
	}

	configPath, dbPath := writeConfig(t, freePort(t), `
admin:
  email: "root@example.com"
  name: "Root"
`)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx, []string{"--config", configPath}, io.Discard); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	db, err := database.Open(context.Background(), database.Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	defer db.Close()
	admin, err := auth.NewUserRepository(db.DB).GetByEmail(context.Background(), "root@example.com")
	if err != nil {
		t.Fatalf("seeded admin lookup error = %v", err)
	}
	if admin.Role != auth.RoleAdmin {
		t.Errorf("seeded role = %q, want admin", admin.Role)
	}
}
