package capture

import (
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitupload/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  *Capture
	}{
		{"id=body.id", &Capture{Name: "id", Source: SourceBody, Path: "id"}},
		{"first=body.files.0.name", &Capture{Name: "first", Source: SourceBody, Path: "files.0.name"}},
		{"all=body", &Capture{Name: "all", Source: SourceBody}},
		{"loc=header.Location", &Capture{Name: "loc", Source: SourceHeader, Path: "Location"}},
		{"code = status", &Capture{Name: "code", Source: SourceStatus}},
		{"ms=duration", &Capture{Name: "ms", Source: SourceDuration}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "id", "=body.id", "id=", "loc=header", "x=cookie.session"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestExtractAll(t *testing.T) {
	resp := &http.Response{
		StatusCode: 201,
		Headers:    map[string]string{"Content-Type": "application/json", "Location": "/files/9"},
		Body:       []byte(`{"id": 9, "files": [{"name": "a.txt"}]}`),
		Duration:   42 * time.Millisecond,
	}

	captures, err := ParseAll([]string{
		"id=body.id",
		"name=body.files.0.name",
		"loc=header.Location",
		"code=status",
		"ms=duration",
		"gone=body.nothing",
	})
	require.NoError(t, err)

	values, missing := ExtractAll(resp, captures)
	assert.Equal(t, float64(9), values["id"])
	assert.Equal(t, "a.txt", values["name"])
	assert.Equal(t, "/files/9", values["loc"])
	assert.Equal(t, 201, values["code"])
	assert.Equal(t, int64(42), values["ms"])
	assert.Equal(t, []string{"gone"}, missing)
}

func TestExtract_NonJSONBody(t *testing.T) {
	resp := &http.Response{StatusCode: 200, Body: []byte("stored as 9")}
	e := NewExtractor(resp)

	v, ok := e.Extract(&Capture{Source: SourceBody})
	assert.True(t, ok)
	assert.Equal(t, "stored as 9", v)

	_, ok = e.Extract(&Capture{Source: SourceBody, Path: "id"})
	assert.False(t, ok)
}

func TestParseAll_StopsAtError(t *testing.T) {
	_, err := ParseAll([]string{"a=status", "broken"})
	assert.Error(t, err)
}
