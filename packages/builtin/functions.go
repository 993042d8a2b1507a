package builtin

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"math/rand"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrUnknownFunction is returned by Call for names not in the registry.
var ErrUnknownFunction = errors.New("unknown function")

type Func func(args []string) (any, error)

type Registry struct {
	funcs map[string]Func
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["now"] = funcNow
	r.funcs["date"] = funcDate
	r.funcs["timestamp"] = funcTimestamp
	r.funcs["timestampMs"] = funcTimestampMs
	r.funcs["uuid"] = funcUUID
	r.funcs["random"] = funcRandom
	r.funcs["randomString"] = funcRandomString
	r.funcs["base64"] = funcBase64
	r.funcs["md5"] = funcMD5
	r.funcs["sha256"] = funcSHA256
	r.funcs["urlEncode"] = funcURLEncode
	r.funcs["env"] = funcEnv
	r.funcs["basename"] = funcBasename
	r.funcs["fileSize"] = funcFileSize
	r.funcs["fileSha256"] = fileDigest(sha256.New)
	r.funcs["fileMD5"] = fileDigest(md5.New)
	r.funcs["mimeType"] = funcMimeType
}

// Names returns the registered function names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// IsCall reports whether expr looks like name(args).
func IsCall(expr string) bool {
	return funcCallPattern.MatchString(expr)
}

// Call evaluates an expression such as `fileSize("a.bin")`.
func (r *Registry) Call(expr string) (any, error) {
	matches := funcCallPattern.FindStringSubmatch(expr)
	if matches == nil {
		return nil, fmt.Errorf("not a function call: %s", expr)
	}

	name := matches[1]
	fn, ok := r.funcs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknownFunction, name, strings.Join(r.Names(), ", "))
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}

	v, err := fn(args)
	if err != nil {
		return nil, fmt.Errorf("%s(): %w", name, err)
	}
	return v, nil
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case !inQuote && (ch == '"' || ch == '\''):
			inQuote = true
			quoteChar = ch
		case inQuote && ch == quoteChar:
			inQuote = false
			quoteChar = 0
		case !inQuote && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	return args
}

func requireArgs(args []string, n int) error {
	if len(args) < n {
		return fmt.Errorf("expected %d argument(s), got %d", n, len(args))
	}
	return nil
}

func intArg(args []string, i int, def int) (int, error) {
	if len(args) <= i {
		return def, nil
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("argument %d: %q is not an integer", i+1, args[i])
	}
	return v, nil
}

func funcNow(_ []string) (any, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}

func funcDate(args []string) (any, error) {
	format := "2006-01-02"
	if len(args) >= 1 {
		format = args[0]
	}
	return time.Now().UTC().Format(format), nil
}

func funcTimestamp(_ []string) (any, error) {
	return time.Now().Unix(), nil
}

func funcTimestampMs(_ []string) (any, error) {
	return time.Now().UnixMilli(), nil
}

func funcUUID(_ []string) (any, error) {
	return uuid.NewString(), nil
}

func funcRandom(args []string) (any, error) {
	min, err := intArg(args, 0, 0)
	if err != nil {
		return nil, err
	}
	max, err := intArg(args, 1, 100)
	if err != nil {
		return nil, err
	}
	if max < min {
		return nil, fmt.Errorf("max %d is less than min %d", max, min)
	}
	return rand.Intn(max-min+1) + min, nil
}

func funcRandomString(args []string) (any, error) {
	length, err := intArg(args, 0, 16)
	if err != nil {
		return nil, err
	}
	return randomString(length, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"), nil
}

func funcBase64(args []string) (any, error) {
	if err := requireArgs(args, 1); err != nil {
		return nil, err
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0])), nil
}

func funcMD5(args []string) (any, error) {
	if err := requireArgs(args, 1); err != nil {
		return nil, err
	}
	sum := md5.Sum([]byte(args[0]))
	return hex.EncodeToString(sum[:]), nil
}

func funcSHA256(args []string) (any, error) {
	if err := requireArgs(args, 1); err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(args[0]))
	return hex.EncodeToString(sum[:]), nil
}

func funcURLEncode(args []string) (any, error) {
	if err := requireArgs(args, 1); err != nil {
		return nil, err
	}
	return url.QueryEscape(args[0]), nil
}

func funcEnv(args []string) (any, error) {
	if err := requireArgs(args, 1); err != nil {
		return nil, err
	}
	if v, ok := os.LookupEnv(args[0]); ok {
		return v, nil
	}
	if len(args) >= 2 {
		return args[1], nil
	}
	return nil, fmt.Errorf("%s is not set", args[0])
}

func funcBasename(args []string) (any, error) {
	if err := requireArgs(args, 1); err != nil {
		return nil, err
	}
	return filepath.Base(args[0]), nil
}

func funcFileSize(args []string) (any, error) {
	if err := requireArgs(args, 1); err != nil {
		return nil, err
	}
	info, err := os.Stat(args[0])
	if err != nil {
		return nil, err
	}
	return info.Size(), nil
}

func fileDigest(newHash func() hash.Hash) Func {
	return func(args []string) (any, error) {
		if err := requireArgs(args, 1); err != nil {
			return nil, err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer f.Close()

		h := newHash()
		if _, err := io.Copy(h, f); err != nil {
			return nil, err
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	}
}

func funcMimeType(args []string) (any, error) {
	if err := requireArgs(args, 1); err != nil {
		return nil, err
	}
	mt, err := mimetype.DetectFile(args[0])
	if err != nil {
		return nil, err
	}
	return mt.String(), nil
}

func randomString(length int, charset string) string {
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
