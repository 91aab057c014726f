package main

import (
	"bytes"
	"strings"
	"testing"
)

// TestGetVersion tests version string resolution.
func TestGetVersion(t *testing.T) {
	t.Run("ldflags version takes priority", func(t *testing.T) {
		original := version
		defer func() { version = original }()

		version = "v1.2.3"
		if got := getVersion(); got != "v1.2.3" {
			t.Errorf("expected v1.2.3, got %q", got)
		}
	})

	t.Run("falls back when ldflags unset", func(t *testing.T) {
		original := version
		defer func() { version = original }()

		version = ""
		if got := getVersion(); got == "" {
			t.Error("expected a non-empty fallback version")
		}
	})
}

// TestGetCommit tests commit hash resolution.
func TestGetCommit(t *testing.T) {
	t.Run("ldflags commit takes priority", func(t *testing.T) {
		original := commit
		defer func() { commit = original }()

		commit = "abc1234"
		if got := getCommit(); got != "abc1234" {
			t.Errorf("expected abc1234, got %q", got)
		}
	})

	t.Run("falls back when ldflags unset", func(t *testing.T) {
		original := commit
		defer func() { commit = original }()

		commit = ""
		if got := getCommit(); got == "" {
			t.Error("expected a non-empty fallback commit")
		}
	})
}

// TestNewVersionCmd tests the version command output.
func TestNewVersionCmd(t *testing.T) {
	cmd := NewVersionCmd()

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.Run(cmd, nil)

	out := buf.String()
	if !strings.Contains(out, "pothi version") {
		t.Errorf("expected version line, got: %s", out)
	}
	if !strings.Contains(out, "commit:") {
		t.Errorf("expected commit line, got: %s", out)
	}
	if !strings.Contains(out, "built:") {
		t.Errorf("expected build date line, got: %s", out)
	}
}
