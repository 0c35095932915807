package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/babel/internal/compiler"
	"github.com/roach88/babel/internal/engine"
	"github.com/roach88/babel/internal/ir"
	"github.com/roach88/babel/internal/store"
)

// Error codes for CLI-level failures. Engine failures are reported with
// the engine's own codes (NOT_FOUND, NAMESPACE_CONFLICT, ...).
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeCompileFailed = "E006" // CUE config did not compile
	ErrCodeOpenFailed    = "E007" // Database could not be opened
	ErrCodeNoDatabase    = "E008" // --db not given
	ErrCodeBadArgument   = "E009" // Malformed positional argument
	ErrCodeWriteFailed   = "E010" // File write error
)

var (
	errNoDatabase   = errors.New("--db is required")
	errOpenDatabase = errors.New("failed to open database")
)

// LoadError represents a failure loading the configuration file.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadConfig compiles the CUE configuration at path. An empty path yields
// the built-in defaults.
func LoadConfig(path string) (*ir.Config, error) {
	if path == "" {
		cfg := ir.DefaultConfig()
		return &cfg, nil
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing config file: %v", err)}
	}
	if info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config path is a directory: %s", path)}
	}

	cfg, err := compiler.CompileFile(path)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return cfg, nil
}

// convertCompileError keeps the CUE position of a compile error.
func convertCompileError(err error) *LoadError {
	var cErr *compiler.CompileError
	if errors.As(err, &cErr) {
		return &LoadError{
			Code:    ErrCodeCompileFailed,
			Message: fmt.Sprintf("%s: %s", cErr.Field, cErr.Message),
			Pos:     cErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeCompileFailed, Message: err.Error()}
}

// session is an open host database with an engine over it.
type session struct {
	store  *store.Store
	engine *engine.Engine
}

// openSession compiles the configuration, opens the database and builds
// an engine that has already read the host settings.
func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	if opts.DB == "" {
		return nil, WrapExitError(ExitCommandError, "no database", errNoDatabase)
	}

	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	slog.Debug("opening database", "path", opts.DB)
	st, err := store.Open(opts.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "no database", fmt.Errorf("%w: %w", errOpenDatabase, err))
	}

	eng := engine.New(st, *cfg,
		engine.WithLogger(slog.Default()),
		engine.WithActor(opts.Actor),
	)
	if err := eng.Reload(ctx); err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to read settings", err)
	}

	return &session{store: st, engine: eng}, nil
}

// Close closes the database.
func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
