package main

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestParseFlagsDefaults(t *testing.T) {
	opts, err := parseFlags(nil, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.cmd != "up" || opts.dir != "pkg/migrate/migrations" {
		t.Fatalf("unexpected defaults %+v", opts)
	}
}

func TestParseFlagsRejectsIncompleteCommands(t *testing.T) {
	cases := map[string][]string{
		"create without name":    {"-cmd", "create"},
		"version without target": {"-cmd", "version"},
		"unknown command":        {"-cmd", "fix"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := parseFlags(args, io.Discard); err == nil {
				t.Fatalf("expected error for %v", args)
			}
		})
	}
}

func TestRunOfflineCreateThenValidate(t *testing.T) {
	dir := t.TempDir()
	out := &bytes.Buffer{}

	handled, err := runOffline(options{cmd: "create", dir: dir, name: "add trade notes"}, out)
	if !handled || err != nil {
		t.Fatalf("create: handled=%v err=%v", handled, err)
	}
	if !strings.Contains(out.String(), "_add_trade_notes.sql") {
		t.Fatalf("unexpected output %q", out.String())
	}

	out.Reset()
	handled, err = runOffline(options{cmd: "validate", dir: dir}, out)
	if !handled || err != nil {
		t.Fatalf("validate: handled=%v err=%v", handled, err)
	}
	if !strings.Contains(out.String(), "validation passed") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRunOfflineLeavesDatabaseCommands(t *testing.T) {
	handled, err := runOffline(options{cmd: "status", dir: t.TempDir()}, io.Discard)
	if handled || err != nil {
		t.Fatalf("status must not be handled offline: handled=%v err=%v", handled, err)
	}
}
