package hooks

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/cleansweep/engine/pkg/curation"
)

func hookBatch() *curation.Batch {
	return curation.FromRecords([]curation.Record{
		{"content": "alpha", "status": "published"},
		{"content": "beta", "status": "draft"},
	})
}

func TestDispatcherNoPlugins(t *testing.T) {
	d := NewDispatcher()
	in := hookBatch()
	got, err := d.DocumentsCleaned(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != in {
		t.Errorf("expected the input batch back, got %v", got)
	}
}

func TestDispatcherObserve(t *testing.T) {
	var seen *curation.Batch
	d := NewDispatcher()
	d.Register(Func("observer", func(_ context.Context, b *curation.Batch) (*curation.Batch, error) {
		seen = b
		return nil, nil
	}))

	in := hookBatch()
	got, err := d.DocumentsCleaned(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != in {
		t.Errorf("observing plugins must not replace the batch")
	}
	if seen != in {
		t.Errorf("plugin should have received the dispatched batch")
	}
}

func TestDispatcherFirstReplacementWins(t *testing.T) {
	first := curation.FromRecords([]curation.Record{{"marker": "first"}})
	second := curation.FromRecords([]curation.Record{{"marker": "second"}})

	var calls []string
	var secondInput *curation.Batch

	d := NewDispatcher()
	d.Register(Func("a", func(_ context.Context, b *curation.Batch) (*curation.Batch, error) {
		calls = append(calls, "a")
		return first, nil
	}))
	d.Register(Func("b", func(_ context.Context, b *curation.Batch) (*curation.Batch, error) {
		calls = append(calls, "b")
		secondInput = b
		return second, nil
	}))

	in := hookBatch()
	got, err := d.DocumentsCleaned(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != first {
		t.Errorf("expected the first plugin's replacement")
	}
	if !reflect.DeepEqual(calls, []string{"a", "b"}) {
		t.Errorf("all plugins should run in registration order, got %v", calls)
	}
	// later plugins see the dispatched batch, not an earlier replacement
	if secondInput != in {
		t.Errorf("second plugin should have received the original batch")
	}
}

func TestDispatcherPluginError(t *testing.T) {
	sentinel := errors.New("kaput")
	d := NewDispatcher()
	d.Register(Func("bad", func(context.Context, *curation.Batch) (*curation.Batch, error) {
		return nil, sentinel
	}))

	_, err := d.DocumentsCleaned(context.Background(), hookBatch())
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected the plugin error to be wrapped, got %v", err)
	}
	if !strings.Contains(err.Error(), `plugin "bad"`) {
		t.Errorf("error should name the failing plugin, got %v", err)
	}
}

func TestDispatcherLen(t *testing.T) {
	d := NewDispatcher()
	if d.Len() != 0 {
		t.Fatalf("new dispatcher should be empty")
	}
	d.Register(Func("a", func(_ context.Context, b *curation.Batch) (*curation.Batch, error) {
		return nil, nil
	}))
	d.Register(Func("b", func(_ context.Context, b *curation.Batch) (*curation.Batch, error) {
		return nil, nil
	}))
	if d.Len() != 2 {
		t.Errorf("expected 2 plugins, got %d", d.Len())
	}
}

func TestFuncName(t *testing.T) {
	p := Func("renamer", func(_ context.Context, b *curation.Batch) (*curation.Batch, error) {
		return nil, nil
	})
	if p.Name() != "renamer" {
		t.Errorf("Name() = %q, want %q", p.Name(), "renamer")
	}
}
