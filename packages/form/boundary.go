package form

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxBoundaryLength is the RFC 2046 limit on boundary length
	MaxBoundaryLength = 70
	// boundaryPrefix marks generated boundaries
	boundaryPrefix = "hitupload-"
	// scanChunkSize is the read size used when scanning files for the delimiter
	scanChunkSize = 32 * 1024
)

var (
	ErrInvalidBoundary   = errors.New("invalid boundary")
	ErrBoundaryCollision = errors.New("boundary appears in part content")
)

// NewBoundary returns a random boundary built from a v4 UUID.
func NewBoundary() string {
	return boundaryPrefix + uuid.NewString()
}

// ValidateBoundary checks b against the RFC 2046 bchars grammar.
func ValidateBoundary(b string) error {
	if len(b) < 1 || len(b) > MaxBoundaryLength {
		return fmt.Errorf("%w: length must be 1..%d, got %d", ErrInvalidBoundary, MaxBoundaryLength, len(b))
	}
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
			continue
		}
		switch c {
		case '\'', '(', ')', '+', '_', ',', '-', '.', '/', ':', '=', '?':
			continue
		case ' ':
			if i == len(b)-1 {
				return fmt.Errorf("%w: must not end with a space", ErrInvalidBoundary)
			}
			continue
		}
		return fmt.Errorf("%w: character %q not allowed", ErrInvalidBoundary, c)
	}
	return nil
}

// CheckBoundary reports ErrBoundaryCollision if any part contains the
// delimiter "--<boundary>". File parts are scanned from disk in chunks.
func (f *Form) CheckBoundary() error {
	delim := []byte("--" + f.boundary)

	for _, p := range f.parts {
		if !p.IsFile() {
			if strings.Contains(p.Value, string(delim)) {
				return fmt.Errorf("%w: field %q", ErrBoundaryCollision, p.Name)
			}
			continue
		}

		if p.Data != nil {
			if bytes.Contains(p.Data, delim) {
				return fmt.Errorf("%w: file %q", ErrBoundaryCollision, p.Filename)
			}
			continue
		}

		file, err := os.Open(p.Path)
		if err != nil {
			return err
		}
		found, err := containsDelimiter(file, delim)
		file.Close()
		if err != nil {
			return fmt.Errorf("scanning %s: %w", p.Path, err)
		}
		if found {
			return fmt.Errorf("%w: file %q", ErrBoundaryCollision, p.Filename)
		}
	}

	return nil
}

// containsDelimiter scans r keeping len(delim)-1 bytes of overlap between
// chunks so matches spanning a chunk edge are found.
func containsDelimiter(r io.Reader, delim []byte) (bool, error) {
	overlap := len(delim) - 1
	buf := make([]byte, overlap+scanChunkSize)
	carry := 0

	for {
		n, err := r.Read(buf[carry:])
		window := buf[:carry+n]
		if bytes.Contains(window, delim) {
			return true, nil
		}
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		if len(window) > overlap {
			copy(buf, window[len(window)-overlap:])
			carry = overlap
		} else {
			carry = len(window)
		}
	}
}
