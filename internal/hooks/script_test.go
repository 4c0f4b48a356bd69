package hooks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cleansweep/engine/internal/errhandling"
)

const observeScript = `
function documentsCleaned(records) {
	return null;
}
`

func mustScriptPlugin(t *testing.T, name, source string) *ScriptPlugin {
	t.Helper()
	p, err := NewScriptPlugin(name, source)
	if err != nil {
		t.Fatalf("NewScriptPlugin(%q): %v", name, err)
	}
	return p
}

func TestNewScriptPluginValidation(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantErr string
	}{
		{"empty source", "", "cannot be empty"},
		{"whitespace source", " \n\t ", "cannot be empty"},
		{"oversized source", strings.Repeat("a", MaxScriptSize+1), "exceeds maximum size"},
		{"syntax error", "function documentsCleaned(records) {", "failed to compile"},
		{"missing hook", "function somethingElse() {}", "does not define documentsCleaned"},
		{"hook is not a function", "var documentsCleaned = 42;", "is not a function"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScriptPlugin("p", tt.source)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
			if errhandling.GetErrorCategory(err) != errhandling.CategoryScript {
				t.Errorf("expected a script error, got category %s", errhandling.GetErrorCategory(err))
			}
		})
	}
}

func TestScriptPluginObserve(t *testing.T) {
	p := mustScriptPlugin(t, "observer", observeScript)
	got, err := p.DocumentsCleaned(context.Background(), hookBatch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("a null return should observe without replacing, got %v", got)
	}
}

func TestScriptPluginReplaceWithNewArray(t *testing.T) {
	p := mustScriptPlugin(t, "filter", `
function documentsCleaned(records) {
	var out = [];
	for (var i = 0; i < records.length; i++) {
		if (records[i].status === "published") {
			out.push(records[i]);
		}
	}
	return out;
}
`)
	got, err := p.DocumentsCleaned(context.Background(), hookBatch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Len() != 1 {
		t.Fatalf("expected a 1-row replacement, got %v", got)
	}
	if got.Row(0)["content"] != "alpha" {
		t.Errorf("unexpected surviving row: %v", got.Row(0))
	}
}

func TestScriptPluginReplaceByReturningRecords(t *testing.T) {
	p := mustScriptPlugin(t, "tagger", `
function documentsCleaned(records) {
	for (var i = 0; i < records.length; i++) {
		records[i].curated = true;
	}
	return records;
}
`)
	in := hookBatch()
	got, err := p.DocumentsCleaned(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Len() != 2 {
		t.Fatalf("expected a 2-row replacement, got %v", got)
	}
	if got.Row(0)["curated"] != true {
		t.Errorf("replacement should carry the added field, got %v", got.Row(0))
	}
	// the script worked on a copy
	if _, ok := in.Row(0)["curated"]; ok {
		t.Errorf("the dispatched batch must not be mutated")
	}
}

func TestScriptPluginMutationWithoutReturnIsInvisible(t *testing.T) {
	p := mustScriptPlugin(t, "mutator", `
function documentsCleaned(records) {
	if (records.length > 0) {
		records[0].content = "mutated";
	}
	return null;
}
`)
	in := hookBatch()
	got, err := p.DocumentsCleaned(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected an observe-only result, got %v", got)
	}
	if in.Row(0)["content"] != "alpha" {
		t.Errorf("in-place mutation must not reach the engine's batch, got %v", in.Row(0))
	}
}

func TestScriptPluginInvalidReturn(t *testing.T) {
	t.Run("scalar", func(t *testing.T) {
		p := mustScriptPlugin(t, "scalar", `function documentsCleaned(records) { return 42; }`)
		_, err := p.DocumentsCleaned(context.Background(), hookBatch())
		if err == nil || !strings.Contains(err.Error(), "must return null or an array of rows") {
			t.Fatalf("expected an invalid-return error, got %v", err)
		}
	})

	t.Run("array of scalars", func(t *testing.T) {
		p := mustScriptPlugin(t, "scalars", `function documentsCleaned(records) { return [1, 2]; }`)
		_, err := p.DocumentsCleaned(context.Background(), hookBatch())
		if err == nil || !strings.Contains(err.Error(), "non-object row at index 0") {
			t.Fatalf("expected a non-object row error, got %v", err)
		}
	})
}

func TestScriptPluginThrow(t *testing.T) {
	p := mustScriptPlugin(t, "thrower", `
function documentsCleaned(records) {
	throw new Error("boom");
}
`)
	_, err := p.DocumentsCleaned(context.Background(), hookBatch())
	if err == nil {
		t.Fatalf("expected an error")
	}
	if errhandling.GetErrorCategory(err) != errhandling.CategoryScript {
		t.Errorf("expected a script error, got category %s", errhandling.GetErrorCategory(err))
	}
	if !strings.Contains(err.Error(), `plugin "thrower" failed`) || !strings.Contains(err.Error(), "boom") {
		t.Errorf("error should name the plugin and carry the thrown message, got %v", err)
	}
}

func TestScriptPluginInterrupt(t *testing.T) {
	p := mustScriptPlugin(t, "spinner", `
function documentsCleaned(records) {
	for (;;) {}
}
`)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.DocumentsCleaned(ctx, hookBatch())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestScriptPluginCancelledContext(t *testing.T) {
	p := mustScriptPlugin(t, "observer", observeScript)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.DocumentsCleaned(ctx, hookBatch())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLoadScriptPlugin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "enricher.js")
	if err := os.WriteFile(path, []byte(observeScript), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadScriptPlugin(path)
	if err != nil {
		t.Fatalf("LoadScriptPlugin: %v", err)
	}
	if p.Name() != "enricher" {
		t.Errorf("plugin name should be the file stem, got %q", p.Name())
	}
	if _, err := p.DocumentsCleaned(context.Background(), hookBatch()); err != nil {
		t.Errorf("loaded plugin should run: %v", err)
	}
}

func TestLoadScriptPluginErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"empty path", "", "cannot be empty"},
		{"null byte", "plug\x00in.js", "invalid characters"},
		{"traversal", "../outside.js", "path traversal"},
		{"nested traversal", "plugins/../../outside.js", "path traversal"},
		{"missing file", filepath.Join(t.TempDir(), "nope.js"), "cannot stat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScriptPlugin(tt.path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadScriptPluginOversizedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "huge.js")
	if err := os.WriteFile(path, make([]byte, MaxScriptSize+1), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadScriptPlugin(path)
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum size") {
		t.Fatalf("expected a size error, got %v", err)
	}
}
