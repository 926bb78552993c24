package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// capture routes the global logger into a buffer for one test.
func capture(t *testing.T, cfg Config) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	cfg.Output = buf
	Setup(cfg)
	t.Cleanup(func() { Setup(DefaultConfig()) })
	return buf
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo || cfg.Pretty || cfg.Output == nil {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input LogLevel
		want  zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{LevelDisabled, zerolog.Disabled},
		{"off", zerolog.Disabled},
		{"OFF", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSetup_Disabled(t *testing.T) {
	for _, level := range []LogLevel{LevelDisabled, "off"} {
		t.Run(string(level), func(t *testing.T) {
			buf := capture(t, Config{Level: level})

			logger := NewLogger(ComponentServer)
			logger.Error().Msg("store failure")
			logger.Info().Msg("listening")

			if buf.Len() != 0 {
				t.Errorf("disabled logging wrote %q", buf.String())
			}
		})
	}
}

func TestNewLogger_Components(t *testing.T) {
	components := []string{
		ComponentCache,
		ComponentRules,
		ComponentDispatch,
		ComponentInvalidation,
		ComponentOrigin,
		ComponentServer,
	}

	seen := make(map[string]bool, len(components))
	for _, component := range components {
		if component == "" || seen[component] {
			t.Fatalf("component name %q is empty or duplicated", component)
		}
		seen[component] = true

		t.Run(component, func(t *testing.T) {
			buf := capture(t, Config{Level: LevelDebug})

			logger := NewLogger(component)
			logger.Debug().Str("fingerprint", "abc").Msg("Cache miss")

			var line map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
				t.Fatalf("output is not one JSON line: %v (%q)", err, buf.String())
			}
			if line["component"] != component {
				t.Errorf("component = %v, want %q", line["component"], component)
			}
			if line["fingerprint"] != "abc" || line["message"] != "Cache miss" {
				t.Errorf("line = %v", line)
			}
			if _, ok := line["time"]; !ok {
				t.Error("line should carry a timestamp")
			}
		})
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	buf := capture(t, Config{Level: LevelWarn})
	logger := NewLogger(ComponentInvalidation)

	logger.Debug().Msg("received message")
	logger.Info().Msg("flushed tag")
	logger.Warn().Msg("empty invalidation payload")
	logger.Error().Msg("flush failed")

	output := buf.String()
	for _, filtered := range []string{"received message", "flushed tag"} {
		if strings.Contains(output, filtered) {
			t.Errorf("%q should be filtered at warn level", filtered)
		}
	}
	for _, kept := range []string{"empty invalidation payload", "flush failed"} {
		if !strings.Contains(output, kept) {
			t.Errorf("%q should be logged at warn level", kept)
		}
	}
}

func TestSetup_Pretty(t *testing.T) {
	buf := capture(t, Config{Level: LevelInfo, Pretty: true})

	logger := NewLogger(ComponentCache)
	logger.Info().Str("tag", "node-42").Msg("Flushed cache tag")

	output := buf.String()
	if strings.HasPrefix(output, "{") {
		t.Errorf("pretty output should not be JSON, got %q", output)
	}
	if !strings.Contains(output, "Flushed cache tag") || !strings.Contains(output, "node-42") {
		t.Errorf("pretty output = %q", output)
	}
}
