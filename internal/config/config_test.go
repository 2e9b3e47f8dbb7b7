package config

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func skipIfNotUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip(
			"skipping: Unix permissions not reliable on Windows",
		)
	}
	if os.Getuid() == 0 {
		t.Skip(
			"skipping: running as root bypasses permissions",
		)
	}
}

func writeConfig(t *testing.T, dir string, data any) {
	t.Helper()
	b, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), b, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// setupConfigDir creates a temp data dir, sets the env var,
// and returns (dir, configPath). It also moves into an empty
// working directory so no stray .env file is read.
func setupConfigDir(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(envDataDir, dir)
	t.Chdir(t.TempDir())
	return dir, filepath.Join(dir, "config.json")
}

// writeConfigRaw writes raw string content to config.json.
func writeConfigRaw(
	t *testing.T, dir string, content string,
) {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(
		path, []byte(content), 0o600,
	); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// assertFilePerm checks that the file at path has permission bits
// matching the given mask and expected value.
func assertFilePerm(
	t *testing.T, path string,
	mask, want os.FileMode,
) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", filepath.Base(path), err)
	}
	if got := info.Mode().Perm() & mask; got != want {
		t.Errorf(
			"%s perm & %o = %o, want %o",
			filepath.Base(path), mask, got, want,
		)
	}
}

func loadConfigFromFlags(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterServeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return Load(fs)
}

func TestLoad_DataDirFromEnv(t *testing.T) {
	custom, _ := setupConfigDir(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != custom {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, custom)
	}
	want := filepath.Join(custom, "zapmetrics.db")
	if cfg.DBPath != want {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, want)
	}
}

func TestLoad_AppliesExplicitFlags(t *testing.T) {
	setupConfigDir(t)
	cfg, err := loadConfigFromFlags(t,
		"-host", "0.0.0.0", "-port", "9090",
		"-lexicon", "/etc/lex.json", "-no-metrics",
	)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want %q", cfg.Host, "0.0.0.0")
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want %d", cfg.Port, 9090)
	}
	if cfg.LexiconPath != "/etc/lex.json" {
		t.Errorf("LexiconPath = %q", cfg.LexiconPath)
	}
	if cfg.MetricsEnabled {
		t.Error("MetricsEnabled = true, want false")
	}
}

func TestLoad_DefaultsWithoutFlags(t *testing.T) {
	setupConfigDir(t)
	cfg, err := loadConfigFromFlags(t)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Host != "127.0.0.1" {
		t.Errorf(
			"Host = %q, want default %q",
			cfg.Host, "127.0.0.1",
		)
	}
	if cfg.Port != 8080 {
		t.Errorf(
			"Port = %d, want default %d", cfg.Port, 8080,
		)
	}
	if !cfg.MetricsEnabled {
		t.Error("metrics should default to enabled")
	}
	if cfg.WatchInterval != 30*time.Second {
		t.Errorf("WatchInterval = %v", cfg.WatchInterval)
	}
}

func TestLoad_Layering(t *testing.T) {
	dir, _ := setupConfigDir(t)
	writeConfig(t, dir, map[string]any{
		"host":            "10.0.0.1",
		"port":            7000,
		"lexicon_path":    "/from/file.json",
		"agent_aliases":   []string{"operador"},
		"watch_interval":  "5s",
		"metrics_enabled": false,
		"log_level":       "debug",
	})
	t.Setenv("ZAPMETRICS_PORT", "7100")
	t.Setenv("ZAPMETRICS_AGENT_ALIASES", "rep, consultor ,")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterServeFlags(fs)
	if err := fs.Parse([]string{"-log-level", "warn"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(fs)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Host != "10.0.0.1" {
		t.Errorf("Host = %q, want file value", cfg.Host)
	}
	if cfg.Port != 7100 {
		t.Errorf("Port = %d, want env value", cfg.Port)
	}
	if cfg.LexiconPath != "/from/file.json" {
		t.Errorf("LexiconPath = %q", cfg.LexiconPath)
	}
	if len(cfg.AgentAliases) != 2 ||
		cfg.AgentAliases[0] != "rep" ||
		cfg.AgentAliases[1] != "consultor" {
		t.Errorf("AgentAliases = %v", cfg.AgentAliases)
	}
	if cfg.WatchInterval != 5*time.Second {
		t.Errorf("WatchInterval = %v", cfg.WatchInterval)
	}
	if cfg.MetricsEnabled {
		t.Error("MetricsEnabled should come from file")
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want flag value", cfg.LogLevel)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	setupConfigDir(t)
	if err := os.WriteFile(".env",
		[]byte("ZAPMETRICS_LEXICON=/from/dotenv.json\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("ZAPMETRICS_LEXICON") })

	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LexiconPath != "/from/dotenv.json" {
		t.Errorf("LexiconPath = %q", cfg.LexiconPath)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
	}{
		{"CorruptFile", func(t *testing.T, dir string) {
			writeConfigRaw(t, dir, "{not json")
		}},
		{"BadFileInterval", func(t *testing.T, dir string) {
			writeConfigRaw(t, dir, `{"watch_interval": "soon"}`)
		}},
		{"BadPort", func(t *testing.T, _ string) {
			t.Setenv("ZAPMETRICS_PORT", "eighty")
		}},
		{"BadMetricsFlag", func(t *testing.T, _ string) {
			t.Setenv("ZAPMETRICS_METRICS", "maybe")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, _ := setupConfigDir(t)
			tt.setup(t, dir)
			if _, err := Load(nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSaveLexiconPath_PreservesExistingKeys(t *testing.T) {
	dir, path := setupConfigDir(t)
	writeConfig(t, dir, map[string]any{"host": "10.0.0.1"})

	cfg := Config{DataDir: dir}
	if err := cfg.SaveLexiconPath("/etc/lex.json"); err != nil {
		t.Fatal(err)
	}
	if cfg.LexiconPath != "/etc/lex.json" {
		t.Errorf("LexiconPath = %q", cfg.LexiconPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["host"] != "10.0.0.1" || got["lexicon_path"] != "/etc/lex.json" {
		t.Errorf("config = %v", got)
	}
	assertFilePerm(t, path, 0o777, 0o600)
}

func TestSaveLexiconPath_RejectsCorruptConfig(t *testing.T) {
	dir, _ := setupConfigDir(t)
	writeConfigRaw(t, dir, "{broken")

	cfg := Config{DataDir: dir}
	if err := cfg.SaveLexiconPath("/x.json"); err == nil {
		t.Fatal("expected error for corrupt config")
	}
}

func TestSaveLexiconPath_ReadFailure(t *testing.T) {
	skipIfNotUnix(t)
	dir, path := setupConfigDir(t)
	writeConfig(t, dir, map[string]any{})
	if err := os.Chmod(path, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(path, 0o600) })

	cfg := Config{DataDir: dir}
	if err := cfg.SaveLexiconPath("/x.json"); err == nil {
		t.Fatal("expected read error")
	}
}
