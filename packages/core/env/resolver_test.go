package env

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverResolve(t *testing.T) {
	t.Setenv("HITUPLOAD_TEST_HOST", "example.com")

	r := NewResolver()
	r.SetVariables(map[string]any{"name": "Larry", "port": 8080})
	r.SetCapture("uploadId", "abc123")

	tests := []struct {
		input    string
		expected string
	}{
		{"plain text", "plain text"},
		{"{{name}}", "Larry"},
		{"http://{{$HITUPLOAD_TEST_HOST}}:{{port}}/up", "http://example.com:8080/up"},
		{"/uploads/{{ uploadId }}", "/uploads/abc123"},
		{`{{base64("a")}}`, "YQ=="},
		{"{{missing}} stays", "{{missing}} stays"},
		{"{{$HITUPLOAD_TEST_UNSET}}", "{{$HITUPLOAD_TEST_UNSET}}"},
		{"{{nope()}}", "{{nope()}}"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.Resolve(tt.input))
		})
	}
}

func TestResolver_CaptureShadowsVariable(t *testing.T) {
	r := NewResolver()
	r.SetVariables(map[string]any{"id": "var"})
	r.SetCaptures(map[string]any{"id": "captured"})
	assert.Equal(t, "captured", r.Resolve("{{id}}"))
}

func TestResolver_FileFunctions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("12345"), 0644))

	r := NewResolver()
	r.SetVariables(map[string]any{"file": path})
	assert.Equal(t, "5", r.Resolve(`{{fileSize("`+path+`")}}`))
}

func TestResolver_Warnings(t *testing.T) {
	var warnings []string
	r := NewResolver()
	r.SetWarnFunc(func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	})

	r.Resolve("{{a}} {{$HITUPLOAD_TEST_UNSET}} {{nope()}}")
	require.Len(t, warnings, 3)
	assert.Equal(t, "unresolved variable: a", warnings[0])
	assert.Equal(t, "unresolved environment variable: $HITUPLOAD_TEST_UNSET", warnings[1])
	assert.Contains(t, warnings[2], "unknown function")
}

func TestResolverGetUnresolvedVariables(t *testing.T) {
	r := NewResolver()
	r.SetVariables(map[string]any{"foo": "x"})

	assert.Nil(t, r.GetUnresolvedVariables("no placeholders"))
	assert.Nil(t, r.GetUnresolvedVariables("{{foo}} {{uuid()}}"))
	assert.Equal(t, []string{"bar", "baz"}, r.GetUnresolvedVariables("{{foo}} {{bar}} {{ baz }}"))
	assert.True(t, r.HasUnresolvedVariables("{{bar}}"))
	assert.False(t, r.HasUnresolvedVariables("{{foo}}"))
}

func TestResolveAll(t *testing.T) {
	r := NewResolver()
	r.SetVariables(map[string]any{"token": "t"})
	got := r.ResolveAll(map[string]string{"Authorization": "Bearer {{token}}", "X": "y"})
	assert.Equal(t, map[string]string{"Authorization": "Bearer t", "X": "y"}, got)
}

func TestResolver_Clone(t *testing.T) {
	r := NewResolver()
	r.SetVariables(map[string]any{"a": 1})
	clone := r.Clone()
	clone.SetVariables(map[string]any{"a": 2})
	clone.SetCapture("b", 3)

	v, _ := r.GetVariable("a")
	assert.Equal(t, 1, v)
	assert.False(t, r.HasVariable("b"))
	assert.True(t, clone.HasVariable("b"))
}
