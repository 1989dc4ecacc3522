package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

func TestOutputFor(t *testing.T) {
	if outputFor(Config{}) != os.Stdout {
		t.Fatal("empty output should map to stdout")
	}
	if outputFor(Config{Output: "stderr"}) != os.Stderr {
		t.Fatal("stderr output should map to stderr")
	}

	w := outputFor(Config{Output: "/tmp/dream60.log"})
	lj, ok := w.(*lumberjack.Logger)
	if !ok {
		t.Fatalf("file output should use lumberjack, got %T", w)
	}
	if lj.MaxAge != 7 {
		t.Fatalf("default max age should be 7, got %d", lj.MaxAge)
	}
}

func TestNewLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger := NewLogger(Config{Level: "debug", Output: path, MaxAgeDays: 1})

	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("unexpected level %s", logger.GetLevel())
	}

	logger.Info().Str("component", "test").Msg("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"hello"`) {
		t.Fatalf("log line missing: %s", data)
	}
}
