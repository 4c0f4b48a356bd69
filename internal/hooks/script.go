// Script plugin host: loads JavaScript plugins and bridges them to the
// Plugin interface using the Goja engine.
package hooks

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/cleansweep/engine/internal/errhandling"
	"github.com/cleansweep/engine/internal/logger"
	"github.com/cleansweep/engine/pkg/curation"
)

// MaxScriptSize is the maximum allowed plugin source length in bytes
// (100KB).
const MaxScriptSize = 100 * 1024

// hookFunctionName is the function a script plugin must define.
const hookFunctionName = "documentsCleaned"

// ScriptPlugin is a plugin implemented in JavaScript. The source must
// define documentsCleaned(records), which receives the batch rows as an
// array of objects and returns either null/undefined (observe only) or
// an array of row objects that replaces the batch. The script sees a
// copy of the rows, so mutating them in place does not alter the
// engine's batch; a replacement must be returned explicitly.
//
// A goja runtime is not goroutine-safe: each plugin owns its runtime and
// DocumentsCleaned must not be called concurrently on one plugin.
type ScriptPlugin struct {
	name        string
	runtime     *goja.Runtime
	fn          goja.Callable
	interruptMu sync.Mutex
}

var _ Plugin = (*ScriptPlugin)(nil)

// NewScriptPlugin compiles source and validates that it defines the
// documentsCleaned function. The source compiles once here; every
// dispatch reuses the same runtime.
func NewScriptPlugin(name, source string) (*ScriptPlugin, error) {
	if err := validateScriptSource(source); err != nil {
		return nil, err
	}
	vm := goja.New()
	if _, err := vm.RunString(source); err != nil {
		return nil, errhandling.NewScriptError(fmt.Sprintf("plugin %q failed to compile", name), err)
	}
	hookVal := vm.Get(hookFunctionName)
	if hookVal == nil || goja.IsUndefined(hookVal) {
		return nil, errhandling.NewScriptError(fmt.Sprintf("plugin %q does not define %s", name, hookFunctionName), nil)
	}
	fn, ok := goja.AssertFunction(hookVal)
	if !ok {
		return nil, errhandling.NewScriptError(fmt.Sprintf("plugin %q: %s is not a function", name, hookFunctionName), nil)
	}
	logger.Debug("script plugin loaded", "plugin", name, "source_bytes", len(source))
	return &ScriptPlugin{name: name, runtime: vm, fn: fn}, nil
}

// LoadScriptPlugin reads and compiles a script plugin from path. The
// plugin takes the file's name without its extension.
func LoadScriptPlugin(path string) (*ScriptPlugin, error) {
	source, err := readScriptFile(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return NewScriptPlugin(name, source)
}

// Name returns the plugin name fixed at load time.
func (p *ScriptPlugin) Name() string {
	return p.name
}

// DocumentsCleaned invokes the script's documentsCleaned function with
// the batch rows and interprets its return value.
func (p *ScriptPlugin) DocumentsCleaned(ctx context.Context, b *curation.Batch) (*curation.Batch, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	rows := make([]map[string]interface{}, 0, b.Len())
	for _, r := range b.Clone().Records() {
		rows = append(rows, map[string]interface{}(r))
	}

	result, err := p.call(ctx, p.runtime.ToValue(rows))
	if err != nil {
		return nil, err
	}
	return p.exportBatch(result)
}

// call runs the hook function with an interrupt armed on context
// cancellation, so a runaway script cannot outlive the run.
func (p *ScriptPlugin) call(ctx context.Context, arg goja.Value) (goja.Value, error) {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			p.interruptMu.Lock()
			p.runtime.Interrupt(ctx.Err().Error())
			p.interruptMu.Unlock()
		case <-done:
			p.interruptMu.Lock()
			p.runtime.ClearInterrupt()
			p.interruptMu.Unlock()
		}
	}()

	result, err := p.fn(goja.Undefined(), arg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, p.scriptError(err)
	}

	p.interruptMu.Lock()
	p.runtime.ClearInterrupt()
	p.interruptMu.Unlock()
	return result, nil
}

// scriptError converts a goja failure into a classified script error,
// logging the JavaScript stack when one is available.
func (p *ScriptPlugin) scriptError(err error) error {
	if jsErr, ok := err.(*goja.Exception); ok {
		if obj, ok := jsErr.Value().(*goja.Object); ok {
			if stack := obj.Get("stack"); stack != nil && !goja.IsUndefined(stack) {
				logger.Debug("plugin stack trace", "plugin", p.name, "stack", stack.String())
			}
		}
		return errhandling.NewScriptError(fmt.Sprintf("plugin %q failed: %v", p.name, jsErr.Value()), err)
	}
	return errhandling.NewScriptError(fmt.Sprintf("plugin %q failed: %v", p.name, err), err)
}

// exportBatch interprets the hook's return value: null or undefined
// means observe only, an array of row objects becomes the replacement
// batch, anything else is an error. The array arrives either as a plain
// JavaScript array or as the wrapped Go slice the script was handed.
func (p *ScriptPlugin) exportBatch(value goja.Value) (*curation.Batch, error) {
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}

	switch list := value.Export().(type) {
	case []interface{}:
		records := make([]curation.Record, len(list))
		for i, item := range list {
			row, ok := item.(map[string]interface{})
			if !ok {
				return nil, errhandling.NewScriptError(
					fmt.Sprintf("plugin %q returned a non-object row at index %d (%T)", p.name, i, item), nil)
			}
			records[i] = curation.Record(row)
		}
		return curation.FromRecords(records), nil
	case []map[string]interface{}:
		records := make([]curation.Record, len(list))
		for i, row := range list {
			records[i] = curation.Record(row)
		}
		return curation.FromRecords(records), nil
	default:
		return nil, errhandling.NewScriptError(
			fmt.Sprintf("plugin %q must return null or an array of rows, got %T", p.name, value.Export()), nil)
	}
}

// readScriptFile reads a plugin source with the size cap enforced both
// before and during the read, so a file growing between stat and read
// cannot bypass the limit.
func readScriptFile(path string) (string, error) {
	if err := validateScriptPath(path); err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", errhandling.NewScriptError(fmt.Sprintf("cannot stat plugin file %q", path), err)
	}
	if info.Size() > MaxScriptSize {
		return "", errhandling.NewScriptError(
			fmt.Sprintf("plugin file %q exceeds maximum size of %d bytes", path, MaxScriptSize), nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", errhandling.NewScriptError(fmt.Sprintf("cannot open plugin file %q", path), err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logger.Warn("failed to close plugin file", "path", path, "error", closeErr.Error())
		}
	}()

	content, err := io.ReadAll(io.LimitReader(f, MaxScriptSize+1))
	if err != nil {
		return "", errhandling.NewScriptError(fmt.Sprintf("cannot read plugin file %q", path), err)
	}
	if len(content) > MaxScriptSize {
		return "", errhandling.NewScriptError(
			fmt.Sprintf("plugin file %q exceeds maximum size of %d bytes", path, MaxScriptSize), nil)
	}
	return string(content), nil
}

// validateScriptPath rejects empty paths, null bytes and upward
// traversal. Absolute paths are allowed but logged.
func validateScriptPath(path string) error {
	if path == "" {
		return errhandling.NewScriptError("plugin path cannot be empty", nil)
	}
	if strings.Contains(path, "\x00") {
		return errhandling.NewScriptError("plugin path contains invalid characters", nil)
	}

	normalized := filepath.ToSlash(filepath.Clean(path))
	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return errhandling.NewScriptError(fmt.Sprintf("plugin path %q contains path traversal", path), nil)
		}
	}
	if filepath.IsAbs(path) {
		logger.Warn("plugin uses absolute path", "path", path)
	}
	return nil
}

// validateScriptSource rejects empty, whitespace-only and oversized
// sources.
func validateScriptSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return errhandling.NewScriptError("plugin script cannot be empty", nil)
	}
	if len(source) > MaxScriptSize {
		return errhandling.NewScriptError(
			fmt.Sprintf("plugin script exceeds maximum size of %d bytes: %d bytes", MaxScriptSize, len(source)), nil)
	}
	return nil
}
