package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/babel/internal/engine"
	"github.com/roach88/babel/internal/ir"
)

// argError is a malformed positional argument or flag value.
type argError struct {
	msg string
}

func (e *argError) Error() string { return e.msg }

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, &argError{fmt.Sprintf("invalid replica id %q", s)}
	}
	return id, nil
}

// parseNode parses a reorder node written as id:parent:order:context.
func parseNode(s string) (ir.NodeDescriptor, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) != 4 {
		return ir.NodeDescriptor{}, &argError{fmt.Sprintf("invalid node %q: want id:parent:order:context", s)}
	}

	var nums [3]int64
	for i, part := range parts[:3] {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || n < 0 {
			return ir.NodeDescriptor{}, &argError{fmt.Sprintf("invalid node %q: %q is not a non-negative integer", s, part)}
		}
		nums[i] = n
	}
	if nums[0] == 0 {
		return ir.NodeDescriptor{}, &argError{fmt.Sprintf("invalid node %q: id must be positive", s)}
	}
	ctx := strings.TrimSpace(parts[3])
	if ctx == "" {
		return ir.NodeDescriptor{}, &argError{fmt.Sprintf("invalid node %q: context is empty", s)}
	}
	return ir.Node(nums[0], nums[1], nums[2], ctx), nil
}

// errorCode maps a failure to the code shown to the user.
func errorCode(err error) string {
	var (
		ee      *engine.EngineError
		loadErr *LoadError
		argErr  *argError
	)
	switch {
	case errors.As(err, &ee):
		return string(ee.Code)
	case errors.As(err, &loadErr):
		return loadErr.Code
	case errors.As(err, &argErr):
		return ErrCodeBadArgument
	case errors.Is(err, errNoDatabase):
		return ErrCodeNoDatabase
	case errors.Is(err, errOpenDatabase):
		return ErrCodeOpenFailed
	case errors.Is(err, engine.ErrNoPendingSort), errors.Is(err, engine.ErrBatchConsumed):
		return "SORT_STATE"
	case errors.Is(err, ir.ErrNotFound):
		return string(engine.ErrCodeNotFound)
	}
	return ErrCodeGeneric
}

// fail reports err through the formatter and returns it with an exit code:
// errors that already carry one keep it, argument errors are command
// errors, everything else is an operation failure.
func fail(f *OutputFormatter, err error) error {
	_ = f.Error(errorCode(err), err.Error(), nil)

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	var argErr *argError
	if errors.As(err, &argErr) {
		return WrapExitError(ExitCommandError, "invalid argument", err)
	}
	return WrapExitError(ExitFailure, "operation failed", err)
}
