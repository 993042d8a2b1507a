package form

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// DefaultFileContentType is sent for file parts without an explicit or detected type
	DefaultFileContentType = "application/octet-stream"

	crlf = "\r\n"
)

var (
	ErrEmptyForm   = errors.New("form has no parts")
	ErrSizeChanged = errors.New("file size changed during upload")
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// Part is a single form-data entry. A part with a Path or Data is a file
// part; otherwise Value is sent as a text field.
type Part struct {
	Name        string
	Value       string
	Path        string
	Filename    string
	ContentType string
	Data        []byte
	file        bool
}

// IsFile reports whether the part carries file content.
func (p *Part) IsFile() bool {
	return p.file
}

func (p *Part) header(boundary string) string {
	var b strings.Builder
	b.WriteString("--")
	b.WriteString(boundary)
	b.WriteString(crlf)
	b.WriteString(`Content-Disposition: form-data; name="`)
	b.WriteString(escapeQuotes(p.Name))
	b.WriteString(`"`)
	if p.file {
		b.WriteString(`; filename="`)
		b.WriteString(escapeQuotes(p.Filename))
		b.WriteString(`"`)
		b.WriteString(crlf)
		b.WriteString("Content-Type: ")
		b.WriteString(p.ContentType)
	} else if p.ContentType != "" {
		b.WriteString(crlf)
		b.WriteString("Content-Type: ")
		b.WriteString(p.ContentType)
	}
	b.WriteString(crlf)
	b.WriteString(crlf)
	return b.String()
}

// Form is an ordered multipart/form-data payload.
type Form struct {
	boundary   string
	baseDir    string
	detectType bool
	parts      []*Part
}

type Option func(*Form)

// WithBoundary uses a fixed boundary instead of a generated one.
func WithBoundary(b string) Option {
	return func(f *Form) {
		f.boundary = b
	}
}

// WithBaseDir resolves relative file paths against dir and rejects paths
// that escape it.
func WithBaseDir(dir string) Option {
	return func(f *Form) {
		f.baseDir = dir
	}
}

// WithDetectContentType sniffs file content for parts without an explicit type.
func WithDetectContentType(detect bool) Option {
	return func(f *Form) {
		f.detectType = detect
	}
}

func New(opts ...Option) (*Form, error) {
	f := &Form{}
	for _, opt := range opts {
		opt(f)
	}
	if f.boundary == "" {
		f.boundary = NewBoundary()
	}
	if err := ValidateBoundary(f.boundary); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Form) Boundary() string {
	return f.boundary
}

// ContentType is the value for the request's Content-Type header.
func (f *Form) ContentType() string {
	b := f.boundary
	if strings.ContainsAny(b, `()<>@,;:\"/[]?= `) {
		b = `"` + b + `"`
	}
	return "multipart/form-data; boundary=" + b
}

func (f *Form) Len() int {
	return len(f.parts)
}

func (f *Form) AddField(name, value string) *Form {
	f.parts = append(f.parts, &Part{Name: name, Value: value})
	return f
}

type FileOption func(*Part)

// WithFilename overrides the filename sent to the server.
func WithFilename(name string) FileOption {
	return func(p *Part) {
		p.Filename = name
	}
}

// WithContentType sets the part Content-Type.
func WithContentType(ct string) FileOption {
	return func(p *Part) {
		p.ContentType = ct
	}
}

// AddFile adds a file part read from path when the body is streamed. A
// relative path is joined to the base dir and may not leave it; an absolute
// path is used as given.
func (f *Form) AddFile(name, path string, opts ...FileOption) error {
	if !filepath.IsAbs(path) && f.baseDir != "" {
		path = filepath.Join(f.baseDir, path)
		if err := validatePathWithinBase(path, f.baseDir); err != nil {
			return err
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	p := &Part{
		Name:     name,
		Path:     path,
		Filename: filepath.Base(path),
		file:     true,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.ContentType == "" && f.detectType {
		if mt, err := mimetype.DetectFile(path); err == nil {
			p.ContentType = mt.String()
		}
	}
	if p.ContentType == "" {
		p.ContentType = DefaultFileContentType
	}

	f.parts = append(f.parts, p)
	return nil
}

// AddFileData adds a file part whose content is already in memory.
func (f *Form) AddFileData(name, filename string, data []byte, opts ...FileOption) {
	if data == nil {
		data = []byte{}
	}
	p := &Part{
		Name:     name,
		Filename: filename,
		Data:     data,
		file:     true,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.ContentType == "" && f.detectType {
		p.ContentType = mimetype.Detect(data).String()
	}
	if p.ContentType == "" {
		p.ContentType = DefaultFileContentType
	}
	f.parts = append(f.parts, p)
}

// Open stats every file part and returns a Body streaming the payload.
// Open may be called repeatedly; each Body is independent.
func (f *Form) Open() (*Body, error) {
	if len(f.parts) == 0 {
		return nil, ErrEmptyForm
	}

	body := &Body{}
	var readers []io.Reader

	for _, p := range f.parts {
		h := p.header(f.boundary)
		readers = append(readers, strings.NewReader(h))
		body.length += int64(len(h))

		switch {
		case !p.file:
			readers = append(readers, strings.NewReader(p.Value))
			body.length += int64(len(p.Value))
		case p.Data != nil:
			readers = append(readers, bytes.NewReader(p.Data))
			body.length += int64(len(p.Data))
		default:
			info, err := os.Stat(p.Path)
			if err != nil {
				return nil, err
			}
			lf := &lazyFile{path: p.Path, size: info.Size()}
			body.files = append(body.files, lf)
			readers = append(readers, lf)
			body.length += info.Size()
		}

		readers = append(readers, strings.NewReader(crlf))
		body.length += int64(len(crlf))
	}

	trailer := "--" + f.boundary + "--" + crlf
	readers = append(readers, strings.NewReader(trailer))
	body.length += int64(len(trailer))

	body.r = io.MultiReader(readers...)
	return body, nil
}

// Bytes materialises the whole payload.
func (f *Form) Bytes() ([]byte, error) {
	body, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer body.Close()

	buf := bytes.NewBuffer(make([]byte, 0, body.Len()))
	if _, err := io.Copy(buf, body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Size returns the payload length without reading any file content.
func (f *Form) Size() (int64, error) {
	body, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer body.Close()
	return body.Len(), nil
}

// Body is a streaming form payload of known length.
type Body struct {
	r      io.Reader
	files  []*lazyFile
	length int64
	read   int64
}

func (b *Body) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	b.read += int64(n)
	return n, err
}

// Len is the total number of bytes the body yields.
func (b *Body) Len() int64 {
	return b.length
}

// BytesRead is the number of bytes consumed so far.
func (b *Body) BytesRead() int64 {
	return b.read
}

// Close releases any file still open.
func (b *Body) Close() error {
	var firstErr error
	for _, lf := range b.files {
		if err := lf.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// lazyFile opens its file on first read and enforces the size recorded at
// Open time so the advertised Content-Length stays correct.
type lazyFile struct {
	path string
	size int64
	file *os.File
	n    int64
	done bool
}

func (l *lazyFile) Read(p []byte) (int, error) {
	if l.done {
		return 0, io.EOF
	}
	if l.file == nil {
		file, err := os.Open(l.path)
		if err != nil {
			return 0, err
		}
		l.file = file
	}

	if remaining := l.size - l.n; int64(len(p)) > remaining {
		p = p[:remaining]
	}

	var n int
	var err error
	if len(p) > 0 {
		n, err = l.file.Read(p)
		l.n += int64(n)
	} else {
		err = io.EOF
	}

	if err == io.EOF {
		l.done = true
		_ = l.close()
		if l.n != l.size {
			return n, fmt.Errorf("%w: %s", ErrSizeChanged, l.path)
		}
		if n > 0 {
			return n, nil
		}
		return 0, io.EOF
	}
	if err != nil {
		return n, err
	}

	if l.n == l.size {
		// Anything left on disk means the file grew after Open.
		var extra [1]byte
		if m, _ := l.file.Read(extra[:]); m > 0 {
			l.done = true
			_ = l.close()
			return n, fmt.Errorf("%w: %s", ErrSizeChanged, l.path)
		}
	}
	return n, nil
}

func (l *lazyFile) close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
