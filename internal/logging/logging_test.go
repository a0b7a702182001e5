package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestCLIHandlerFormatsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCLI(&buf, slog.LevelInfo).With("component", "test")

	logger.Info("copied package", "path", "/tmp/a.rpm", "count", 2, "error", errors.New("boom bang"))

	line := buf.String()
	if !strings.HasPrefix(line, "INFO ") {
		t.Fatalf("expected INFO prefix, got %q", line)
	}
	for _, want := range []string{"| copied package", "component=test", "path=/tmp/a.rpm", "count=2", `error="boom bang"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestCLIHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCLI(&buf, slog.LevelWarn)

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("info record should be filtered: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "WARN") {
		t.Fatalf("warn record missing: %q", buf.String())
	}
}

func TestSectionDrawsRule(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCLI(&buf, nil)

	Section(logger, "Pull request detected!")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected rule and heading, got %d lines: %q", len(lines), buf.String())
	}
	if lines[0] != strings.Repeat("-", ruleWidth) {
		t.Fatalf("unexpected rule line %q", lines[0])
	}
	if strings.Contains(lines[1], SectionKey+"=") {
		t.Fatalf("section marker should not be rendered: %q", lines[1])
	}
}

func TestCLIHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCLI(&buf, nil).WithGroup("job")

	logger.Info("identity", "tag", "jenkins-1")

	if !strings.Contains(buf.String(), "job.tag=jenkins-1") {
		t.Fatalf("expected grouped key, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
	}
	for input, want := range cases {
		got, err := ParseLevel(input)
		if err != nil {
			t.Fatalf("ParseLevel(%q) error = %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}

	if _, err := ParseLevel("chatty"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestParseMode(t *testing.T) {
	if mode, err := ParseMode("json"); err != nil || mode != ModeJSON {
		t.Fatalf("ParseMode(json) = %v, %v", mode, err)
	}
	if _, err := ParseMode("xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
