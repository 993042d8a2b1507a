package assertions

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitupload/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createResponse(statusCode int, body string, headers map[string]string) *http.Response {
	if headers == nil {
		headers = make(map[string]string)
	}
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = "application/json"
	}
	return &http.Response{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       []byte(body),
		Duration:   100 * time.Millisecond,
	}
}

const uploadBody = `{
	"id": "u-1",
	"size": 2048,
	"files": [{"name": "report.pdf", "type": "application/pdf"}, {"name": "notes.txt", "type": "text/plain"}],
	"comment": "Larry",
	"deleted": null
}`

func TestEvaluator_Status(t *testing.T) {
	e := NewEvaluatorWithBaseDir(createResponse(201, `{}`, nil), "")

	assert.True(t, e.Evaluate(StatusIn(201)).Passed)
	assert.True(t, e.Evaluate(StatusIn(200, 201)).Passed)

	result := e.Evaluate(StatusIn(200, 204))
	assert.False(t, result.Passed)
	assert.Equal(t, 201, result.Actual)
	assert.Contains(t, result.Message, "to be in")
}

func TestEvaluator_BodyPaths(t *testing.T) {
	e := NewEvaluatorWithBaseDir(createResponse(200, uploadBody, nil), "")

	tests := []struct {
		name     string
		subject  string
		operator Operator
		expected any
		passed   bool
	}{
		{"string equals", "body.comment", OpEquals, "Larry", true},
		{"numeric equals across types", "body.size", OpEquals, 2048, true},
		{"greater than", "body.size", OpGreaterThan, 1024, true},
		{"less or equal fails", "body.size", OpLessOrEqual, 1000, false},
		{"bracket notation", "body.files[0].name", OpEquals, "report.pdf", true},
		{"gjson notation", "files.1.type", OpStartsWith, "text/", true},
		{"array length", "body.files", OpLength, 2, true},
		{"ends with", "body.files[0].name", OpEndsWith, ".pdf", true},
		{"matches", "body.id", OpMatches, `^u-\d+$`, true},
		{"type array", "body.files", OpType, "array", true},
		{"type null", "body.deleted", OpType, "null", true},
		{"not equals", "body.comment", OpNotEquals, "Moe", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := e.Evaluate(&Assertion{Subject: tt.subject, Operator: tt.operator, Expected: tt.expected})
			assert.Equal(t, tt.passed, result.Passed, "Message: %s", result.Message)
		})
	}
}

func TestEvaluator_Exists(t *testing.T) {
	e := NewEvaluatorWithBaseDir(createResponse(200, uploadBody, nil), "")

	assert.True(t, e.Evaluate(&Assertion{Subject: "body.id", Operator: OpExists}).Passed)
	assert.False(t, e.Evaluate(&Assertion{Subject: "body.deleted", Operator: OpExists}).Passed, "null counts as absent")
	assert.True(t, e.Evaluate(&Assertion{Subject: "body.missing", Operator: OpNotExists}).Passed)
}

func TestEvaluator_IncludesAndIn(t *testing.T) {
	e := NewEvaluatorWithBaseDir(createResponse(200, `{"tags": ["a", "b"], "state": "stored"}`, nil), "")

	assert.True(t, e.Evaluate(&Assertion{Subject: "body.tags", Operator: OpIncludes, Expected: "b"}).Passed)
	assert.True(t, e.Evaluate(&Assertion{Subject: "body.tags", Operator: OpNotIncludes, Expected: "z"}).Passed)
	assert.True(t, e.Evaluate(&Assertion{Subject: "body.state", Operator: OpIn, Expected: []any{"stored", "queued"}}).Passed)
	assert.True(t, e.Evaluate(&Assertion{Subject: "body.state", Operator: OpNotIn, Expected: []any{"failed"}}).Passed)
}

func TestEvaluator_RawBody(t *testing.T) {
	resp := createResponse(200, "<html>File uploaded</html>", map[string]string{"Content-Type": "text/html"})
	e := NewEvaluatorWithBaseDir(resp, "")

	assert.True(t, e.Evaluate(BodyContains("uploaded")).Passed)
	assert.True(t, e.Evaluate(&Assertion{Subject: "body", Operator: OpContains, Expected: "File"}).Passed)

	result := e.Evaluate(&Assertion{Subject: "body.id", Operator: OpExists})
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "not JSON")
}

func TestEvaluator_JSONWithoutContentType(t *testing.T) {
	resp := createResponse(200, ` {"id": 7}`, map[string]string{"Content-Type": "text/plain"})
	e := NewEvaluatorWithBaseDir(resp, "")
	assert.True(t, e.Evaluate(&Assertion{Subject: "body.id", Operator: OpEquals, Expected: 7}).Passed)
}

func TestEvaluator_DurationAndSize(t *testing.T) {
	resp := createResponse(200, `{"ok": true}`, nil)
	resp.Duration = 50 * time.Millisecond
	e := NewEvaluatorWithBaseDir(resp, "")

	assert.True(t, e.Evaluate(&Assertion{Subject: "duration", Operator: OpLessThan, Expected: 100}).Passed)
	assert.True(t, e.Evaluate(&Assertion{Subject: "size", Operator: OpEquals, Expected: 12}).Passed)
}

func TestEvaluator_Header(t *testing.T) {
	resp := createResponse(201, `{}`, map[string]string{
		"Content-Type": "application/json; charset=utf-8",
		"Location":     "/files/u-1",
	})
	e := NewEvaluatorWithBaseDir(resp, "")

	assert.True(t, e.Evaluate(&Assertion{Subject: "header Location", Operator: OpStartsWith, Expected: "/files/"}).Passed)
	assert.True(t, e.Evaluate(&Assertion{Subject: "header Content-Type", Operator: OpContains, Expected: "json"}).Passed)
	assert.True(t, e.Evaluate(&Assertion{Subject: "header X-Missing", Operator: OpNotExists}).Passed)
}

func TestEvaluator_Schema(t *testing.T) {
	tmpDir := t.TempDir()
	schema := `{
		"type": "object",
		"required": ["id", "files"],
		"properties": {
			"id": {"type": "string"},
			"files": {"type": "array", "items": {"required": ["name"]}}
		}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "upload.schema.json"), []byte(schema), 0644))

	e := NewEvaluatorWithBaseDir(createResponse(200, uploadBody, nil), tmpDir)
	result := e.Evaluate(BodySchema("upload.schema.json"))
	assert.True(t, result.Passed, "Message: %s", result.Message)

	bad := NewEvaluatorWithBaseDir(createResponse(200, `{"id": 5}`, nil), tmpDir)
	result = bad.Evaluate(BodySchema("upload.schema.json"))
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "schema validation failed")

	result = bad.Evaluate(BodySchema("missing.json"))
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "failed to read schema file")
}

func TestEvaluateAll(t *testing.T) {
	resp := createResponse(200, `{"status": "ok", "count": 5}`, nil)

	results := EvaluateAllWithBaseDir(resp, []*Assertion{
		{Subject: "status", Operator: OpEquals, Expected: 200},
		{Subject: "body.status", Operator: OpEquals, Expected: "ok"},
		{Subject: "body.count", Operator: OpGreaterThan, Expected: 10},
	}, "")

	require.Len(t, results, 3)
	assert.False(t, AllPassed(results))
	assert.Equal(t, "body.count >: expected 5 > 10", Failures(results))
	assert.True(t, AllPassed(results[:2]))
}
