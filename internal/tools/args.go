package tools

import (
	"fmt"

	"github.com/fortemi/matric-mcp/internal/domain/tool"
)

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%w: %q is required", tool.ErrInvalidArguments, key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %q must be a non-empty string", tool.ErrInvalidArguments, key)
	}
	return s, nil
}

// optionalStringArg extracts an optional string argument, defaulting empty.
func optionalStringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string", tool.ErrInvalidArguments, key)
	}
	return s, nil
}

// optionalIntArg extracts an optional integer argument, defaulting to def.
// JSON numbers arrive as float64.
func optionalIntArg(args map[string]any, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) {
		return 0, fmt.Errorf("%w: %q must be an integer", tool.ErrInvalidArguments, key)
	}
	return int(f), nil
}

// optionalStringsArg extracts an optional array-of-strings argument.
func optionalStringsArg(args map[string]any, key string) ([]string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q must be an array of strings", tool.ErrInvalidArguments, key)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %q must be an array of strings", tool.ErrInvalidArguments, key)
		}
		out = append(out, s)
	}
	return out, nil
}
