package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"

	perrors "github.com/YuminosukeSato/poiml/pkg/errors"
)

func TestLoggerInterface(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", StageKey, StageScaling)
	testLogger.Warn("warning message", "warning_code", "TEST_WARNING")
	testLogger.Error("error message", fmt.Errorf("test error"), ErrorCodeKey, ErrorStratification)

	if buffer.String() == "" {
		t.Fatal("Expected log output, got empty string")
	}
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		if !testLogger.ContainsMessage(msg) {
			t.Errorf("%q not found in output", msg)
		}
	}
	if !testLogger.ContainsField("key1", "value1") {
		t.Error("Expected field key1=value1 not found")
	}
	if !testLogger.ContainsField("number", 42.0) {
		t.Error("Expected field number=42 not found")
	}
	if !testLogger.ContainsField(ErrAttrKey, "test error") {
		t.Error("bare error should be logged under the error key")
	}
}

func TestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	contextLogger := testLogger.With(
		RunIDKey, "run-1",
		StageKey, StageSelection,
	)
	contextLogger.Info("feature kept", FeatureKey, "bonus", ImportanceKey, 0.2)

	if !testLogger.ContainsField(RunIDKey, "run-1") {
		t.Error("run id context not found")
	}
	if !testLogger.ContainsField(StageKey, StageSelection) {
		t.Error("stage context not found")
	}
	if !testLogger.ContainsField(ImportanceKey, 0.2) {
		t.Error("importance field not found")
	}
}

func TestLoggerEnabled(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	ctx := context.Background()

	if !testLogger.Enabled(ctx, LevelInfo) {
		t.Error("Logger should be enabled for Info level")
	}
	if testLogger.Enabled(ctx, LevelDebug) {
		t.Error("Logger should not be enabled for Debug level")
	}

	testLogger.Debug("this should not appear")
	testLogger.Info("this should appear")

	if testLogger.ContainsMessage("this should not appear") {
		t.Error("Debug message should not appear when level is Info")
	}
	if !testLogger.ContainsMessage("this should appear") {
		t.Error("Info message should appear when level is Info")
	}
}

func TestLoggerProviderIntegration(t *testing.T) {
	provider, buffer := NewTestLoggerProvider(LevelDebug)

	provider.GetLogger().Info("provider test message")
	provider.GetLoggerWithName("tune").Info("named logger message")

	lines := buffer.String()
	for _, want := range []string{"provider test message", "named logger message", "tune"} {
		if !strings.Contains(lines, want) {
			t.Errorf("%q not found in output", want)
		}
	}
	if !provider.Logger().ContainsField(ComponentKey, "tune") {
		t.Error("component key not set by GetLoggerWithName")
	}
}

func TestConcurrentLogging(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	const workers, perWorker = 4, 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				testLogger.Info("fold scored", WorkersKey, id, "fold", j)
			}
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatalf("Failed to parse log entries: %v", err)
	}
	if len(entries) != workers*perWorker {
		t.Errorf("got %d entries, want %d", len(entries), workers*perWorker)
	}
}

func TestZerologProvider(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProviderWithWriter(&buf, LevelInfo)

	logger := p.GetLoggerWithName("pipeline").With(RunIDKey, "abc")
	logger.Debug("hidden")
	logger.Info("stage finished", StageKey, StageTuning, ScoreKey, 0.75)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatal(err)
	}
	want := map[string]interface{}{
		"level":      "info",
		"message":    "stage finished",
		ComponentKey: "pipeline",
		RunIDKey:     "abc",
		StageKey:     StageTuning,
		ScoreKey:     0.75,
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}

	if logger.Enabled(context.Background(), LevelDebug) {
		t.Error("debug should be disabled at info level")
	}
	p.SetLevel(LevelDebug)
	if !p.GetLogger().Enabled(context.Background(), LevelDebug) {
		t.Error("SetLevel should apply to new loggers")
	}
}

func TestZerologErrorStacktrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologProviderWithWriter(&buf, LevelDebug).GetLogger()

	logger.Error("tuning failed", ErrAttrKey, errors.New("boom"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry[ErrAttrKey] != "boom" {
		t.Errorf("error = %v, want boom", entry[ErrAttrKey])
	}
	if st, _ := entry[StacktraceAttrKey].(string); !strings.Contains(st, "integration_test.go") {
		t.Errorf("stacktrace should point at the caller, got %q", st)
	}
}

func TestSetupLoggerRoutesWarnings(t *testing.T) {
	prev := GetProvider()
	defer func() {
		SetProvider(prev)
		perrors.SetZerologWarnFunc(nil)
	}()

	var buf bytes.Buffer
	SetupLogger(&buf, "debug", false)
	perrors.Warn(perrors.NewConvergenceWarning("LogisticRegression", 100, ""))

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, "LogisticRegression") {
		t.Errorf("warning not routed to zerolog: %s", out)
	}
	if !strings.Contains(out, `"algorithm":"LogisticRegression"`) {
		t.Errorf("warning should be logged as an object: %s", out)
	}
}

func TestToLogLevel(t *testing.T) {
	if ToLogLevel("warn") != LevelWarn {
		t.Error("warn should map to LevelWarn")
	}
	defer func() {
		if recover() == nil {
			t.Error("unknown level should panic")
		}
	}()
	ToLogLevel("verbose")
}

func BenchmarkLoggingWithContext(b *testing.B) {
	testLogger, _ := NewTestLogger(LevelInfo)
	contextLogger := testLogger.With(RunIDKey, "bench", ComponentKey, "benchmark")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		contextLogger.Info("fold scored", IterationKey, i, SamplesKey, 144)
	}
}
