package interpolate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipec/internal/ir"
)

func TestResolveInputsDefaults(t *testing.T) {
	specs := ir.MappingOf(
		"env", ir.MappingOf("default", "dev"),
		"replicas", ir.MappingOf("type", "number", "default", 1),
		"debug", ir.MappingOf("type", "boolean", "default", false),
		"targets", ir.MappingOf("type", "array", "default", []any{"x"}),
		"stage", nil,
	)

	got, diags := ResolveInputs(specs, map[string]any{"stage": "test", "replicas": 3}, "spec.inputs")
	require.Empty(t, diags)
	assert.Equal(t, map[string]any{
		"env":      "dev",
		"replicas": 3,
		"debug":    false,
		"targets":  []any{"x"},
		"stage":    "test",
	}, got)
}

func TestResolveInputsErrors(t *testing.T) {
	tests := []struct {
		name    string
		specs   *ir.Mapping
		given   map[string]any
		message string
	}{
		{"unknown argument", ir.MappingOf("a", nil), map[string]any{"a": "x", "zz": 1, "b": 2}, "unknown input arguments: b, zz"},
		{"required", ir.MappingOf("a", nil), nil, "`a` input: required value has not been provided"},
		{"wrong type", ir.MappingOf("a", ir.MappingOf("type", "number")), map[string]any{"a": "1"}, "provided value is not a number"},
		{"bad default", ir.MappingOf("a", ir.MappingOf("type", "boolean", "default", "yes")), nil, "default value is not a boolean"},
		{"unknown type", ir.MappingOf("a", ir.MappingOf("type", "object")), nil, "input type unknown value"},
		{"options", ir.MappingOf("a", ir.MappingOf("options", []any{"dev", "prod"})), map[string]any{"a": "qa"}, "not in the list of allowed options"},
		{"regex", ir.MappingOf("a", ir.MappingOf("regex", "^v\\d+$")), map[string]any{"a": "1.0"}, "does not match required RegEx pattern"},
		{"regex on number", ir.MappingOf("a", ir.MappingOf("type", "number", "regex", "/1/")), map[string]any{"a": 1}, "regex can only be used with string inputs"},
		{"unknown spec key", ir.MappingOf("a", ir.MappingOf("required", true)), nil, "unknown input specification keys: required"},
		{"spec not hash", ir.MappingOf("a", "x"), nil, "must be a hash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diags := ResolveInputs(tt.specs, tt.given, "spec.inputs")
			require.NotEmpty(t, diags)
			assert.Equal(t, ir.KindInterpolation, diags[0].Kind)
			assert.Equal(t, ir.ErrInvalidInput, diags[0].Code)
			assert.Contains(t, diags[0].Message, tt.message)
		})
	}
}

func TestResolveInputsOptionsAndRegexPass(t *testing.T) {
	specs := ir.MappingOf(
		"env", ir.MappingOf("options", []any{"dev", "prod"}),
		"version", ir.MappingOf("regex", "/^v\\d+$/"),
	)
	got, diags := ResolveInputs(specs, map[string]any{"env": "prod", "version": "v2"}, "spec.inputs")
	require.Empty(t, diags)
	assert.Equal(t, "prod", got["env"])
	assert.Equal(t, "v2", got["version"])
}
