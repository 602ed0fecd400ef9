package hostfunc

import (
	"context"
	"errors"
	"fmt"
)

// NewOutput returns a host function appending args["text"] to the run output.
func NewOutput(host Host) Func {
	return func(ctx context.Context, args map[string]any) (any, error) {
		text, err := stringArg(args, "text")
		if err != nil {
			return nil, err
		}
		host.Output(text)
		return "ok", nil
	}
}

// NewInput returns a host function that prompts the user with args["prompt"].
// A dismissed prompt yields nil, which the shims surface as null/None.
func NewInput(host Host) Func {
	return func(ctx context.Context, args map[string]any) (any, error) {
		prompt, _ := args["prompt"].(string)
		value, ok, err := host.Input(ctx, prompt)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return value, nil
	}
}

// NewReadFile returns a host function resolving args["name"] as a support file.
func NewReadFile(host Host) Func {
	return func(ctx context.Context, args map[string]any) (any, error) {
		name, err := stringArg(args, "name")
		if err != nil {
			return nil, err
		}
		return host.ReadSupportFile(name)
	}
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", errors.New(key + " required")
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, v)
	}
	return s, nil
}
