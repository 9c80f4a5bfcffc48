package actions

import (
	"context"
	"os"
	"path/filepath"

	"github.com/flowt-dev/flowt/pkg/schema"
)

// resolvePath resolves a possibly relative path against the run's
// base_dir context variable.
func resolvePath(pathStr string, runCtx map[string]any) string {
	if filepath.IsAbs(pathStr) {
		return pathStr
	}
	if base, ok := runCtx["base_dir"].(string); ok && base != "" {
		return filepath.Join(base, pathStr)
	}
	return pathStr
}

// FileReadAction reads a text file into the run context.
type FileReadAction struct{}

// Name returns "file_read".
func (a *FileReadAction) Name() string { return "file_read" }

// Execute reads params["path"] (relative paths resolve against base_dir)
// and returns its content, resolved path and size.
func (a *FileReadAction) Execute(_ context.Context, params map[string]any, runCtx map[string]any) (map[string]any, error) {
	pathStr, err := requireStringParam(params, "path")
	if err != nil {
		return nil, err
	}

	path := resolvePath(pathStr, runCtx)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, schema.NewErrorf(schema.ErrCodeActionFailed, "file not found: %s", path).WithCause(err)
		}
		return nil, schema.NewErrorf(schema.ErrCodeActionFailed, "read %s: %s", path, err.Error()).WithCause(err)
	}

	return map[string]any{
		"content": string(data),
		"path":    path,
		"size":    len(data),
	}, nil
}

// FileWriteAction writes (truncating) a text file, creating parent
// directories as needed.
type FileWriteAction struct{}

// Name returns "file_write".
func (a *FileWriteAction) Name() string { return "file_write" }

func (a *FileWriteAction) Execute(_ context.Context, params map[string]any, runCtx map[string]any) (map[string]any, error) {
	return writeFile(params, runCtx, false)
}

// FileAppendAction appends to a text file, creating it and parent
// directories as needed.
type FileAppendAction struct{}

// Name returns "file_append".
func (a *FileAppendAction) Name() string { return "file_append" }

func (a *FileAppendAction) Execute(_ context.Context, params map[string]any, runCtx map[string]any) (map[string]any, error) {
	return writeFile(params, runCtx, true)
}

func writeFile(params map[string]any, runCtx map[string]any, appendMode bool) (map[string]any, error) {
	pathStr, err := requireStringParam(params, "path")
	if err != nil {
		return nil, err
	}
	content := stringParam(params, "content", "")

	path := resolvePath(pathStr, runCtx)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeActionFailed, "mkdir for %s: %s", path, err.Error()).WithCause(err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeActionFailed, "open %s: %s", path, err.Error()).WithCause(err)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeActionFailed, "write %s: %s", path, err.Error()).WithCause(err)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeActionFailed, "stat %s: %s", path, err.Error()).WithCause(err)
	}

	return map[string]any{
		"written": true,
		"path":    path,
		"size":    int(info.Size()),
	}, nil
}
