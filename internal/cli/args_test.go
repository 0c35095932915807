package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/babel/internal/engine"
	"github.com/roach88/babel/internal/ir"
)

func TestParseID(t *testing.T) {
	id, err := parseID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "x7", "1.5"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseNode(t *testing.T) {
	node, err := parseNode("5:10:3:web")
	require.NoError(t, err)
	assert.Equal(t, ir.Node(5, 10, 3, "web"), node)

	// The context is everything after the third separator.
	node, err = parseNode("5:0:1:a:b")
	require.NoError(t, err)
	assert.Equal(t, "a:b", *node.Context)

	tests := map[string]string{
		"5:10:web":   "want id:parent:order:context",
		"x:10:3:web": "not a non-negative integer",
		"5:-1:3:web": "not a non-negative integer",
		"0:10:3:web": "id must be positive",
		"5:10:3: ":   "context is empty",
	}
	for in, want := range tests {
		_, err := parseNode(in)
		require.Error(t, err, in)
		assert.Contains(t, err.Error(), want, in)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{engine.NewNotFoundError(5, ir.ErrNotFound), "NOT_FOUND"},
		{fmt.Errorf("wrapped: %w", &engine.EngineError{Code: engine.ErrCodeNamespaceConflict}), "NAMESPACE_CONFLICT"},
		{&LoadError{Code: ErrCodeCompileFailed}, ErrCodeCompileFailed},
		{&argError{"bad"}, ErrCodeBadArgument},
		{WrapExitError(ExitCommandError, "no database", errNoDatabase), ErrCodeNoDatabase},
		{fmt.Errorf("%w: %w", errOpenDatabase, errors.New("locked")), ErrCodeOpenFailed},
		{engine.ErrNoPendingSort, "SORT_STATE"},
		{fmt.Errorf("load: %w", ir.ErrNotFound), "NOT_FOUND"},
		{errors.New("boom"), ErrCodeGeneric},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorCode(tt.err), tt.err.Error())
	}
}
