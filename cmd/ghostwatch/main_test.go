package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRunRejectsMissingSource(t *testing.T) {
	var stderr bytes.Buffer
	if code := run(context.Background(), nil, &stderr); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
	if !strings.Contains(stderr.String(), "source URL") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestRunHelp(t *testing.T) {
	var stderr bytes.Buffer
	if code := run(context.Background(), []string{"-h"}, &stderr); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if !strings.Contains(stderr.String(), "-source-url") {
		t.Fatalf("usage not printed: %q", stderr.String())
	}
}

func TestRunBadLogConfig(t *testing.T) {
	var stderr bytes.Buffer
	args := []string{"-source-url", "https://example.test/data", "-log-config", "<root>=LOUD"}
	if code := run(context.Background(), args, &stderr); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var stderr bytes.Buffer
	args := []string{
		"-source-url", "http://127.0.0.1:1/data",
		"-listen", "127.0.0.1:0",
		"-storage", "memory",
		"-blob", "memory",
		"-log-config", "<root>=ERROR",
	}
	if code := run(ctx, args, &stderr); code != 0 {
		t.Fatalf("expected clean exit, got %d: %s", code, stderr.String())
	}
}
