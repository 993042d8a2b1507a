package server

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// maxFieldSize caps a plain field value; longer fields are refused.
const maxFieldSize = 1 << 20

// ReceivedFile describes one file part.
type ReceivedFile struct {
	Field       string `json:"field"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256"`
	SavedAs     string `json:"saved_as,omitempty"`
}

// Receipt is the JSON body returned for each upload.
type Receipt struct {
	Method   string            `json:"method"`
	Path     string            `json:"path"`
	Proto    string            `json:"proto"`
	Boundary string            `json:"boundary"`
	Bytes    int64             `json:"bytes"`
	Fields   map[string]string `json:"fields"`
	Files    []ReceivedFile    `json:"files"`
}

func (s *Server) receive(c *gin.Context) {
	mediaType, params, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "expected a multipart body"})
		return
	}

	mr, err := c.Request.MultipartReader()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt := Receipt{
		Method:   c.Request.Method,
		Path:     c.Request.URL.Path,
		Proto:    c.Request.Proto,
		Boundary: params["boundary"],
		Fields:   make(map[string]string),
		Files:    []ReceivedFile{},
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.fail(c, err)
			return
		}

		if part.FileName() == "" {
			value, err := io.ReadAll(io.LimitReader(part, maxFieldSize+1))
			part.Close()
			if err != nil {
				s.fail(c, err)
				return
			}
			if len(value) > maxFieldSize {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{
					"error": fmt.Sprintf("field %q exceeds %d bytes", part.FormName(), maxFieldSize),
				})
				return
			}
			receipt.Fields[part.FormName()] = string(value)
			receipt.Bytes += int64(len(value))
			continue
		}

		file, err := s.consumeFile(part.FormName(), part.FileName(), part.Header.Get("Content-Type"), part)
		part.Close()
		if err != nil {
			s.fail(c, err)
			return
		}
		receipt.Files = append(receipt.Files, *file)
		receipt.Bytes += file.Size
	}

	s.mu.Lock()
	s.received++
	s.mu.Unlock()

	s.log.Debug().
		Int("files", len(receipt.Files)).
		Int("fields", len(receipt.Fields)).
		Int64("bytes", receipt.Bytes).
		Msg("upload received")

	c.JSON(http.StatusOK, receipt)
}

// consumeFile hashes a file part and, with a save directory, copies it to
// disk under its base name.
func (s *Server) consumeFile(field, filename, contentType string, r io.Reader) (*ReceivedFile, error) {
	h := sha256.New()
	dst := io.Writer(h)

	var saved string
	if s.config.SaveDir != "" {
		name := safeName(filename)
		if err := os.MkdirAll(s.config.SaveDir, 0o755); err != nil {
			return nil, err
		}
		f, err := os.CreateTemp(s.config.SaveDir, name+".*")
		if err != nil {
			return nil, err
		}
		defer f.Close()
		saved = f.Name()
		dst = io.MultiWriter(h, f)
	}

	n, err := io.Copy(dst, r)
	if err != nil {
		if saved != "" {
			os.Remove(saved)
		}
		return nil, err
	}

	return &ReceivedFile{
		Field:       field,
		Filename:    filename,
		ContentType: contentType,
		Size:        n,
		SHA256:      hex.EncodeToString(h.Sum(nil)),
		SavedAs:     saved,
	}, nil
}

func (s *Server) fail(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("body exceeds %d bytes", maxErr.Limit),
		})
		return
	}
	s.log.Warn().Err(err).Msg("malformed upload")
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func safeName(filename string) string {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." || name == "" {
		return "upload"
	}
	return name
}
