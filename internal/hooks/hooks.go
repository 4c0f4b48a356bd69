// Package hooks provides the extension-hook boundary of the cleaning
// engine. The engine fires a single documents_clean event at the end of
// every clean run; plugins registered on a Dispatcher observe the final
// batch and may replace it. Plugins are implemented in Go against the
// Plugin interface or loaded from JavaScript files via the script host
// in script.go.
package hooks

import (
	"context"
	"fmt"

	"github.com/cleansweep/engine/pkg/curation"
)

// Plugin receives engine extension events.
type Plugin interface {
	// Name identifies the plugin in logs and error messages.
	Name() string

	// DocumentsCleaned receives the final batch of a clean run. A
	// non-nil return replaces the batch; nil observes without replacing.
	DocumentsCleaned(ctx context.Context, b *curation.Batch) (*curation.Batch, error)
}

// Dispatcher fans engine events out to registered plugins. Registration
// is not safe for concurrent use and must complete before dispatching.
type Dispatcher struct {
	plugins []Plugin
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register appends a plugin. Plugins fire in registration order.
func (d *Dispatcher) Register(p Plugin) {
	d.plugins = append(d.plugins, p)
}

// Len returns the number of registered plugins.
func (d *Dispatcher) Len() int {
	return len(d.plugins)
}

// DocumentsCleaned fires the documents_clean event once. Every plugin
// runs in registration order and sees the same batch b, even after an
// earlier plugin has returned a replacement; the first non-nil
// replacement becomes the result. With no plugins, or none replacing, b
// itself is returned. A plugin error aborts the dispatch.
func (d *Dispatcher) DocumentsCleaned(ctx context.Context, b *curation.Batch) (*curation.Batch, error) {
	var replacement *curation.Batch
	for _, p := range d.plugins {
		out, err := p.DocumentsCleaned(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("plugin %q: %w", p.Name(), err)
		}
		if out != nil && replacement == nil {
			replacement = out
		}
	}
	if replacement != nil {
		return replacement, nil
	}
	return b, nil
}

// Func adapts a plain function to the Plugin interface.
func Func(name string, fn func(context.Context, *curation.Batch) (*curation.Batch, error)) Plugin {
	return pluginFunc{name: name, fn: fn}
}

type pluginFunc struct {
	name string
	fn   func(context.Context, *curation.Batch) (*curation.Batch, error)
}

func (p pluginFunc) Name() string { return p.name }

func (p pluginFunc) DocumentsCleaned(ctx context.Context, b *curation.Batch) (*curation.Batch, error) {
	return p.fn(ctx, b)
}
