package openapi

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitupload/packages/core/config"
)

const petstore = `
openapi: 3.0.3
info:
  title: Files
  version: "1.0"
servers:
  - url: https://{region}.files.example.com/v1
    variables:
      region:
        default: eu
paths:
  /pets/{petId}/photo:
    parameters:
      - name: petId
        in: path
        required: true
        schema:
          type: string
    post:
      operationId: uploadPhoto
      requestBody:
        content:
          multipart/form-data:
            schema:
              type: object
              required: [caption, file]
              properties:
                caption:
                  type: string
                visibility:
                  type: string
                  enum: [public, private]
                note:
                  type: string
                file:
                  type: string
                  format: binary
      responses:
        "201":
          description: created
        "200":
          description: replaced
        "400":
          description: bad
  /docs:
    put:
      operationId: putDocs
      requestBody:
        content:
          multipart/form-data:
            schema:
              type: object
              properties:
                attachments:
                  type: array
                  items:
                    type: string
                    format: binary
                thumbnail:
                  type: string
                  format: binary
      responses:
        "204":
          description: stored
  /pets:
    get:
      operationId: listPets
      responses:
        "200":
          description: ok
`

func loadDoc(t *testing.T) *openapi3.T {
	t.Helper()
	doc, err := openapi3.NewLoader().LoadFromData([]byte(petstore))
	require.NoError(t, err)
	return doc
}

func TestUploads(t *testing.T) {
	uploads := NewConverter().Uploads(loadDoc(t))
	require.Len(t, uploads, 2)

	assert.Equal(t, "PUT /docs", uploads[0].Key())
	assert.Equal(t, "attachments", uploads[0].FileField)
	assert.True(t, uploads[0].Multiple)
	assert.Len(t, uploads[0].Warnings, 1)

	photo := uploads[1]
	assert.Equal(t, "uploadPhoto", photo.OperationID)
	assert.Equal(t, "/pets/{{petId}}/photo", photo.Path)
	assert.Equal(t, "file", photo.FileField)
	assert.False(t, photo.Multiple)
	assert.Equal(t, []config.Field{
		{Name: "caption", Value: "{{caption}}"},
		{Name: "visibility", Value: "public"},
	}, photo.Fields)
	assert.Equal(t, []int{200, 201}, photo.Status)
}

func TestConvert_ByOperation(t *testing.T) {
	cfg, u, err := NewConverter(WithOperation("uploadPhoto")).Convert(loadDoc(t))
	require.NoError(t, err)
	assert.Equal(t, "uploadPhoto", u.OperationID)
	assert.Equal(t, "https://eu.files.example.com/v1/pets/{{petId}}/photo", cfg.URL)
	assert.Empty(t, cfg.Method)
	assert.Equal(t, "file", cfg.FileField)
	assert.Equal(t, []int{200, 201}, cfg.Expect.Status)

	cfg, _, err = NewConverter(WithOperation("put /docs"), WithBaseURL("http://localhost:9000/")).Convert(loadDoc(t))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/docs", cfg.URL)
	assert.Equal(t, "PUT", cfg.Method)
}

func TestConvert_Ambiguous(t *testing.T) {
	_, _, err := NewConverter().Convert(loadDoc(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--operation")
	assert.Contains(t, err.Error(), "uploadPhoto (POST /pets/{{petId}}/photo)")

	_, _, err = NewConverter(WithOperation("listPets")).Convert(loadDoc(t))
	assert.Error(t, err)
}

func TestConvertFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(petstore), 0644))

	cfg, _, err := NewConverter(WithOperation("uploadPhoto")).ConvertFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.FileField)

	_, _, err = NewConverter().ConvertFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
