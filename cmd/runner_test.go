package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/navaarsync/navaar/internal/shared"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}

			runner := NewRunner(RunnerConfig{Config: config, Logger: logger, Output: output})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerConfig{})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerConfig{})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerConfig{})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerConfig{Output: &bytes.Buffer{}})
		commands := runner.register()

		names := make(map[string]bool, len(commands))
		for _, c := range commands {
			names[c.Name] = true
		}
		for _, want := range []string{"setup", "auth", "serve", "stats", "track"} {
			if !names[want] {
				t.Errorf("expected a %q command to be registered", want)
			}
		}
	})

	t.Run("writeJSON", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerConfig{Output: output})

		if err := runner.writeJSON(map[string]int{"a": 1}, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := output.String(); !strings.Contains(got, `"a":1`) {
			t.Errorf("expected output to contain marshaled JSON, got %q", got)
		}
		if !strings.HasSuffix(output.String(), "\n") {
			t.Error("expected writeJSON to append a trailing newline")
		}
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerConfig{Output: output})

		if err := runner.writePlain("count: %d\n", 3); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := output.String(); got != "count: 3\n" {
			t.Errorf("expected %q, got %q", "count: 3\n", got)
		}
	})

	t.Run("loadConfig", func(t *testing.T) {
		t.Run("falls back to defaults when the file is missing", func(t *testing.T) {
			def := shared.DefaultConfig()
			runner := NewRunner(RunnerConfig{Config: def, Output: &bytes.Buffer{}})

			got := runner.loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
			if got != def {
				t.Error("expected the runner's default config to be returned unchanged")
			}
		})

		t.Run("loads an existing file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte("[database]\npath = \"/tmp/navaar.db\"\n"), 0o644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}
			runner := NewRunner(RunnerConfig{Output: &bytes.Buffer{}})

			got := runner.loadConfig(path)
			if got.Database.Path != "/tmp/navaar.db" {
				t.Errorf("expected loaded config's database path to be set, got %q", got.Database.Path)
			}
		})
	})
}
