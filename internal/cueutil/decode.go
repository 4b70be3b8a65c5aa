// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Decode compiles data as CUE (JSON is valid CUE), unifies it with the
// definition in schema and decodes the result into T.
func Decode[T any](schema, data []byte, definition string, opts ...Option) (*T, error) {
	options := applyOptions(opts)

	if err := CheckFileSize(data, options.maxFileSize, options.filename); err != nil {
		return nil, err
	}

	ctx := cuecontext.New()
	user := ctx.CompileBytes(data, cue.Filename(options.filename))
	if user.Err() != nil {
		return nil, FormatError(user.Err(), options.filename)
	}

	return unifyAndDecode[T](ctx, schema, user, definition, options)
}

// DecodeValue encodes an already-decoded Go value (a map from a TOML or YAML
// document) into CUE and validates it against the same schema as Decode.
func DecodeValue[T any](schema []byte, v any, definition string, opts ...Option) (*T, error) {
	options := applyOptions(opts)

	ctx := cuecontext.New()
	user := ctx.Encode(v)
	if user.Err() != nil {
		return nil, FormatError(user.Err(), options.filename)
	}

	return unifyAndDecode[T](ctx, schema, user, definition, options)
}

func unifyAndDecode[T any](ctx *cue.Context, schema []byte, user cue.Value, definition string, options decodeOptions) (*T, error) {
	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: compile schema: %w", schemaValue.Err())
	}

	root := schemaValue.LookupPath(cue.ParsePath(definition))
	if root.Err() != nil {
		return nil, fmt.Errorf("internal error: schema definition %s not found: %w", definition, root.Err())
	}

	unified := root.Unify(user)
	var validateOpts []cue.Option
	if options.concrete {
		validateOpts = append(validateOpts, cue.Concrete(true))
	}
	if err := unified.Validate(validateOpts...); err != nil {
		return nil, FormatError(err, options.filename)
	}

	var out T
	if err := unified.Decode(&out); err != nil {
		return nil, FormatError(err, options.filename)
	}
	return &out, nil
}

func applyOptions(opts []Option) decodeOptions {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
