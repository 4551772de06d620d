package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func Test_newApp_Wiring(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dataDir := t.TempDir()

	a, err := newApp(context.Background(), "https://api.example.org/graphql", dataDir)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.close()

	if a.cfg.Endpoint != "https://api.example.org/graphql" {
		t.Fatalf("endpoint override lost: %q", a.cfg.Endpoint)
	}
	if a.cfg.DataDir != dataDir {
		t.Fatalf("data dir override lost: %q", a.cfg.DataDir)
	}
	if a.mgr == nil || a.st == nil {
		t.Fatalf("incomplete wiring: %+v", a)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "session.db")); err != nil {
		t.Fatalf("store database not created: %v", err)
	}
}

func Test_newApp_TokenSourceReadsStore(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dataDir := t.TempDir()

	a, err := newApp(context.Background(), "https://api.example.org/graphql", dataDir)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.close()

	if err := a.st.SaveAccessToken(context.Background(), "tok123", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveAccessToken: %v", err)
	}
	tok, _, err := a.st.AccessToken(context.Background())
	if err != nil || tok != "tok123" {
		t.Fatalf("token roundtrip: %q %v", tok, err)
	}
}

func Test_printJSON_WritesPretty(t *testing.T) {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w
	defer func() { os.Stdout = old }()

	printJSON(map[string]any{"a": 1})
	_ = w.Close()
	out, _ := io.ReadAll(r)

	var m map[string]any
	if json.Unmarshal(out, &m) != nil || m["a"] != float64(1) {
		t.Fatalf("printJSON produced invalid json: %s", string(out))
	}
	if !bytes.Contains(out, []byte("\n")) {
		t.Fatalf("printJSON should indent")
	}
}

func Test_newLogger_Levels(t *testing.T) {
	t.Parallel()

	for _, lvl := range []string{"debug", "info", "warn", "error", "garbage"} {
		if newLogger(lvl) == nil {
			t.Fatalf("newLogger(%q) returned nil", lvl)
		}
	}
}

func Test_withTimeout(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	a, err := newApp(context.Background(), "https://api.example.org/graphql", t.TempDir())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.close()

	ctx, cancel := a.withTimeout()
	defer cancel()
	dl, ok := ctx.Deadline()
	if !ok {
		t.Fatal("context has no deadline")
	}
	if until := time.Until(dl); until > a.cfg.RequestTimeout {
		t.Fatalf("deadline %v beyond configured timeout %v", until, a.cfg.RequestTimeout)
	}
}
