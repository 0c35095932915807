package store

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/roach88/babel/internal/ir"
)

// marshalFields converts a replica's non-core attributes to canonical JSON
// TEXT so that identical attribute sets always produce identical rows.
func marshalFields(fields ir.Object) (string, error) {
	if len(fields) == 0 {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(fields)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

// unmarshalFields parses stored attribute TEXT. Integral numbers come back
// as ir.Int so that round trips do not drift to floats.
func unmarshalFields(data string) (ir.Object, error) {
	if data == "" || data == "{}" {
		return ir.Object{}, nil
	}
	var obj ir.Object
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return obj, nil
}

// cacheOptions is the stored shape of ir.InvalidateOptions.
type cacheOptions struct {
	DeleteTop  bool     `json:"delete_top"`
	SkipDirs   bool     `json:"skip_dirs"`
	Extensions []string `json:"extensions"`
}

func marshalCacheOptions(opts ir.InvalidateOptions) (string, error) {
	exts := opts.Extensions
	if exts == nil {
		exts = []string{}
	}
	data, err := json.Marshal(cacheOptions{
		DeleteTop:  opts.DeleteTop,
		SkipDirs:   opts.SkipDirs,
		Extensions: exts,
	})
	if err != nil {
		return "", fmt.Errorf("marshal cache options: %w", err)
	}
	return string(data), nil
}

func unmarshalCacheOptions(data string) (ir.InvalidateOptions, error) {
	var opts cacheOptions
	if data != "" {
		if err := json.Unmarshal([]byte(data), &opts); err != nil {
			return ir.InvalidateOptions{}, fmt.Errorf("unmarshal cache options: %w", err)
		}
	}
	return ir.InvalidateOptions{
		DeleteTop:  opts.DeleteTop,
		SkipDirs:   opts.SkipDirs,
		Extensions: opts.Extensions,
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
