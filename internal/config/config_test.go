package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"
)

func newConfigPathForSaveTest(t *testing.T, elems ...string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", home)

	defaultPath := DefaultPath()
	return filepath.Join(filepath.Dir(defaultPath), filepath.Join(elems...))
}

func TestPathWithinDir(t *testing.T) {
	baseDir := t.TempDir()
	configDir := filepath.Join(baseDir, "config")

	tests := []struct {
		name string
		path string
		dir  string
		want bool
	}{
		{
			name: "same path",
			path: configDir,
			dir:  configDir,
			want: true,
		},
		{
			name: "subdirectory path",
			path: filepath.Join(configDir, "sub", "config.yaml"),
			dir:  configDir,
			want: true,
		},
		{
			name: "traversal path",
			path: filepath.Join(configDir, "..", "outside.yaml"),
			dir:  configDir,
			want: false,
		},
		{
			name: "different path",
			path: filepath.Join(baseDir, "other", "config.yaml"),
			dir:  configDir,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pathWithinDir(tt.path, tt.dir)
			if got != tt.want {
				t.Fatalf("pathWithinDir(%q, %q) = %v, want %v", tt.path, tt.dir, got, tt.want)
			}
		})
	}
}

func TestIsZeroConfig(t *testing.T) {
	if !isZeroConfig(Config{}) {
		t.Fatal("isZeroConfig(Config{}) = false, want true")
	}
	if isZeroConfig(DefaultConfig()) {
		t.Fatal("isZeroConfig(DefaultConfig()) = true, want false")
	}
}

func TestDefaultConfigMatchesMonitorTuning(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.SyncInterval != 500*time.Millisecond {
		t.Errorf("SyncInterval = %v, want 500ms", cfg.SyncInterval)
	}
	if cfg.CopyModeSyncInterval != 50*time.Millisecond {
		t.Errorf("CopyModeSyncInterval = %v, want 50ms", cfg.CopyModeSyncInterval)
	}
	if cfg.ThrottleInterval != 16*time.Millisecond {
		t.Errorf("ThrottleInterval = %v, want 16ms", cfg.ThrottleInterval)
	}
	if cfg.ThrottleThreshold != 20 {
		t.Errorf("ThrottleThreshold = %d, want 20", cfg.ThrottleThreshold)
	}
	if cfg.RateWindow != 100*time.Millisecond {
		t.Errorf("RateWindow = %v, want 100ms", cfg.RateWindow)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("got %+v, want defaults", cfg)
	}
}

func TestLoadEmptyPathFails(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected an error for an empty path")
	}
}

func TestLoadRejectsShellOutsideAllowlist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("shell: powershell.exe\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a disallowed shell")
	}
}

func TestLoadAcceptsAllowlistedShellName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("shell: zsh\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Shell != "zsh" {
		t.Fatalf("Shell = %q, want zsh", cfg.Shell)
	}
}

func TestLoadAcceptsCaseInsensitiveShellName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("shell: BASH\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoadRejectsShellWithNullByte(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("shell: \"ba\\x00sh\"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a shell containing a null byte")
	}
}

func TestLoadRejectsAbsolutePathShellThatDoesNotExist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	missing := filepath.Join(t.TempDir(), "nonexistent-bash")
	if err := os.WriteFile(path, []byte("shell: "+missing+"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an absolute shell path that does not exist")
	}
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("shell: bash\nlog_level: verbose\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an invalid log level")
	}
}

func TestLoadIgnoresUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := "shell: bash\nsome_removed_field: true\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoadFillsZeroDurationsWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("shell: bash\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SyncInterval != DefaultConfig().SyncInterval {
		t.Fatalf("SyncInterval = %v, want default", cfg.SyncInterval)
	}
	if cfg.ListenAddr != DefaultConfig().ListenAddr {
		t.Fatalf("ListenAddr = %q, want default", cfg.ListenAddr)
	}
}

func TestLoadReturnsDefaultsOnParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("shell: [this is not valid\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if cfg != DefaultConfig() {
		t.Fatalf("got %+v, want defaults on parse failure", cfg)
	}
}

func TestDefaultPathUsesXDGConfigHomeWhenSet(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	got := DefaultPath()
	want := filepath.Join(xdg, "tmuxy", "config.yaml")
	if got != want {
		t.Fatalf("DefaultPath() = %q, want %q", got, want)
	}
}

func TestDefaultPathFallsBackToDotConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", home)

	got := DefaultPath()
	want := filepath.Join(home, ".config", "tmuxy", "config.yaml")
	if got != want {
		t.Fatalf("DefaultPath() = %q, want %q", got, want)
	}
}

func TestDefaultPathFallsBackToTempDirWhenHomeDirUnavailable(t *testing.T) {
	orig := userHomeDirFn
	defer func() { userHomeDirFn = orig }()
	userHomeDirFn = func() (string, error) { return "", errors.New("no home dir") }
	t.Setenv("XDG_CONFIG_HOME", "")

	got := DefaultPath()
	want := filepath.Join(os.TempDir(), "tmuxy", "config.yaml")
	if got != want {
		t.Fatalf("DefaultPath() = %q, want %q", got, want)
	}
}

func TestSave(t *testing.T) {
	path := newConfigPathForSaveTest(t, "config.yaml")
	cfg := DefaultConfig()
	cfg.Shell = "fish"
	cfg.ListenAddr = "127.0.0.1:9000"

	written, err := Save(path, cfg)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if written.Shell != "fish" {
		t.Fatalf("Shell = %q, want fish", written.Shell)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0o600 {
		t.Fatalf("perm = %v, want 0600", info.Mode().Perm())
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded != written {
		t.Fatalf("got %+v after reload, want %+v", reloaded, written)
	}
}

func TestSaveRejectsPathOutsideConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", home)
	_ = DefaultPath()

	outside := filepath.Join(t.TempDir(), "elsewhere.yaml")
	if _, err := Save(outside, DefaultConfig()); err == nil {
		t.Fatal("expected an error saving outside the default config directory")
	}
}

func TestSaveRejectsInvalidShell(t *testing.T) {
	path := newConfigPathForSaveTest(t, "config.yaml")
	cfg := DefaultConfig()
	cfg.Shell = "cmd.exe"
	if _, err := Save(path, cfg); err == nil {
		t.Fatal("expected an error saving a disallowed shell")
	}
}

func TestSaveConcurrentWrites(t *testing.T) {
	path := newConfigPathForSaveTest(t, "config.yaml")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := Save(path, DefaultConfig()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Save failed: %v", err)
	}

	if _, err := Load(path); err != nil {
		t.Fatalf("Load after concurrent saves: %v", err)
	}
}

func TestEnsureFileCreatesConfigFile(t *testing.T) {
	path := newConfigPathForSaveTest(t, "config.yaml")
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected config file to not yet exist, stat err = %v", err)
	}

	cfg, err := EnsureFile(path)
	if err != nil {
		t.Fatalf("EnsureFile: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("got %+v, want defaults", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be created: %v", err)
	}
}

func TestEnsureFileUsesExistingConfigFile(t *testing.T) {
	path := newConfigPathForSaveTest(t, "config.yaml")
	want := DefaultConfig()
	want.Shell = "fish"
	if _, err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := EnsureFile(path)
	if err != nil {
		t.Fatalf("EnsureFile: %v", err)
	}
	if got.Shell != "fish" {
		t.Fatalf("Shell = %q, want fish (existing file should not be overwritten)", got.Shell)
	}
}

func TestReadLimitedFileRejectsTooLargeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.yaml")
	huge := make([]byte, maxConfigFileBytes+1)
	if err := os.WriteFile(path, huge, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := readLimitedFile(path, maxConfigFileBytes); err == nil {
		t.Fatal("expected an error for a file exceeding the byte limit")
	}
}

func TestReadLimitedFileAllowsFileAtExactMaxBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exact.yaml")
	exact := make([]byte, maxConfigFileBytes)
	if err := os.WriteFile(path, exact, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := readLimitedFile(path, maxConfigFileBytes); err != nil {
		t.Fatalf("readLimitedFile: %v", err)
	}
}

func TestAllowedShellList(t *testing.T) {
	shells := AllowedShellList()
	want := map[string]bool{"bash": true, "zsh": true, "fish": true, "sh": true, "dash": true}
	if len(shells) != len(want) {
		t.Fatalf("got %d shells, want %d", len(shells), len(want))
	}
	for _, s := range shells {
		if !want[s] {
			t.Errorf("unexpected shell %q in allowlist", s)
		}
	}
}

func TestAllowedShellListIsSorted(t *testing.T) {
	shells := AllowedShellList()
	for i := 1; i < len(shells); i++ {
		if shells[i-1] > shells[i] {
			t.Fatalf("AllowedShellList() not sorted: %v", shells)
		}
	}
}

func TestValidateConfigPathReturnsErrorWhenDefaultConfigDirResolutionFails(t *testing.T) {
	orig := defaultConfigDirFn
	defer func() { defaultConfigDirFn = orig }()
	defaultConfigDirFn = func() (string, error) { return "", errors.New("cannot resolve config dir") }

	if _, err := validateConfigPath(filepath.Join(t.TempDir(), "config.yaml")); err == nil {
		t.Fatal("expected an error when the config directory cannot be resolved")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]string{
		"debug": "DEBUG",
		"DEBUG": "DEBUG",
		"warn":  "WARN",
		"error": "ERROR",
		"info":  "INFO",
		"":      "INFO",
		"huh":   "INFO",
	}
	for in, want := range tests {
		if got := ParseLogLevel(in).String(); got != want {
			t.Errorf("ParseLogLevel(%q) = %q, want %q", in, got, want)
		}
	}
}
