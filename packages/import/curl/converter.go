// Package curl converts curl upload commands into hitupload configurations.
package curl

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/hitupload/packages/core/config"
)

// ParsedCurl represents a parsed curl command.
type ParsedCurl struct {
	Method          string
	URL             string
	Headers         map[string]string
	Fields          []config.Field
	FileField       string
	Files           []string
	BasicAuth       string
	Insecure        bool
	FollowRedirects bool
	HTTP10          bool
	MaxTime         float64
	Retries         int
	Proxy           string

	// Warnings describe options the config cannot express.
	Warnings []string
}

// Parse parses a curl command string.
func Parse(curlCmd string) (*ParsedCurl, error) {
	parsed := &ParsedCurl{
		Headers: make(map[string]string),
	}

	curlCmd = strings.TrimSpace(curlCmd)
	if curlCmd == "curl" {
		return nil, fmt.Errorf("no URL specified")
	}
	curlCmd = strings.TrimPrefix(curlCmd, "curl ")

	tokens := tokenize(curlCmd)

	value := func(i int) (string, error) {
		if i+1 < len(tokens) {
			return tokens[i+1], nil
		}
		return "", fmt.Errorf("missing value for %s", tokens[i])
	}

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]

		switch token {
		case "-X", "--request":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.Method = strings.ToUpper(v)
			i++

		case "-H", "--header":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			if key, val, ok := strings.Cut(v, ":"); ok {
				parsed.Headers[strings.TrimSpace(key)] = strings.TrimSpace(val)
			}
			i++

		case "-F", "--form":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			if err := parsed.addFormPart(v); err != nil {
				return nil, err
			}
			i++

		case "--form-string":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			name, val, ok := strings.Cut(v, "=")
			if !ok || name == "" {
				return nil, fmt.Errorf("illegal form field %q, use name=value", v)
			}
			parsed.Fields = append(parsed.Fields, config.Field{Name: name, Value: val})
			i++

		case "-d", "--data", "--data-raw", "--data-binary", "--data-urlencode", "-T", "--upload-file":
			return nil, fmt.Errorf("%s sends a non-multipart body, only -F/--form uploads can be imported", token)

		case "-u", "--user":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.BasicAuth = v
			i++

		case "-k", "--insecure":
			parsed.Insecure = true

		case "-L", "--location":
			parsed.FollowRedirects = true

		case "-0", "--http1.0":
			parsed.HTTP10 = true

		case "--http1.1":
			parsed.HTTP10 = false

		case "-A", "--user-agent":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.Headers["User-Agent"] = v
			i++

		case "-e", "--referer":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.Headers["Referer"] = v
			i++

		case "-b", "--cookie":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.Headers["Cookie"] = v
			i++

		case "-m", "--max-time":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			secs, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid %s value %q", token, v)
			}
			parsed.MaxTime = secs
			i++

		case "--retry":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s value %q", token, v)
			}
			parsed.Retries = n
			i++

		case "-x", "--proxy":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.Proxy = v
			i++

		case "--url":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.URL = v
			i++

		default:
			if strings.HasPrefix(token, "-") {
				// Skip unknown flags with potential values
				if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") && !isURL(tokens[i+1]) {
					parsed.Warnings = append(parsed.Warnings, fmt.Sprintf("ignored %s %s", token, tokens[i+1]))
					i++
				} else {
					parsed.Warnings = append(parsed.Warnings, "ignored "+token)
				}
				continue
			}
			if parsed.URL == "" && isURL(token) {
				parsed.URL = token
			}
		}
	}

	if parsed.URL == "" {
		return nil, fmt.Errorf("no URL found in curl command")
	}
	if len(parsed.Files) == 0 {
		return nil, fmt.Errorf("curl command has no -F name=@file part")
	}
	return parsed, nil
}

// addFormPart handles one -F argument: "name=@path[;type=...]" uploads a
// file and "name=value" sends a text field.
func (p *ParsedCurl) addFormPart(arg string) error {
	name, val, ok := strings.Cut(arg, "=")
	if !ok || name == "" {
		return fmt.Errorf("illegal form part %q, use name=value or name=@file", arg)
	}

	switch {
	case strings.HasPrefix(val, "@"):
		path, opts, _ := strings.Cut(val[1:], ";")
		path = strings.Trim(path, `"`)
		if path == "" {
			return fmt.Errorf("form part %q names no file", arg)
		}
		if p.FileField == "" {
			p.FileField = name
		} else if p.FileField != name {
			p.Warnings = append(p.Warnings, fmt.Sprintf("file %s moved from field %q to %q", path, name, p.FileField))
		}
		if opts != "" {
			p.Warnings = append(p.Warnings, fmt.Sprintf("ignored part options %q for %s", opts, path))
		}
		p.Files = append(p.Files, path)

	case strings.HasPrefix(val, "<"):
		return fmt.Errorf("form part %q reads a field from a file, which cannot be imported", arg)

	default:
		p.Fields = append(p.Fields, config.Field{Name: name, Value: val})
	}
	return nil
}

// Config maps the parsed command onto a configuration. Options curl leaves
// off by default, like following redirects, are written explicitly.
func (p *ParsedCurl) Config() *config.Config {
	cfg := &config.Config{
		URL:             p.URL,
		FileField:       p.FileField,
		Fields:          p.Fields,
		Files:           p.Files,
		FollowRedirects: config.BoolPtr(p.FollowRedirects),
		Proxy:           p.Proxy,
		Retries:         p.Retries,
	}
	if p.Method != "" && p.Method != "POST" {
		cfg.Method = p.Method
	}
	if p.HTTP10 {
		cfg.HTTPVersion = "1.0"
	}
	if p.Insecure {
		cfg.ValidateSSL = config.BoolPtr(false)
	}
	if p.MaxTime > 0 {
		cfg.Timeout = int(p.MaxTime * 1000)
	}
	if p.BasicAuth != "" {
		user, pass, _ := strings.Cut(p.BasicAuth, ":")
		cfg.Auth = "basic:" + user + ":" + pass
	}
	if len(p.Headers) > 0 {
		cfg.Headers = p.Headers
	}
	return cfg
}

// Read joins the lines of r into one command, honoring backslash
// continuations and skipping blank and comment lines.
func Read(r io.Reader) (string, error) {
	var (
		commands []string
		current  strings.Builder
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasSuffix(line, "\\") {
			current.WriteString(strings.TrimSuffix(line, "\\"))
			current.WriteString(" ")
			continue
		}
		current.WriteString(line)
		commands = append(commands, current.String())
		current.Reset()
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read curl command: %w", err)
	}
	if current.Len() > 0 {
		commands = append(commands, current.String())
	}

	switch len(commands) {
	case 0:
		return "", fmt.Errorf("no curl command found")
	case 1:
		return commands[0], nil
	default:
		return "", fmt.Errorf("expected one curl command, found %d", len(commands))
	}
}

// tokenize splits a curl command into tokens, respecting quotes.
func tokenize(cmd string) []string {
	var tokens []string
	var current strings.Builder
	inSingleQuote := false
	inDoubleQuote := false
	escaped := false

	for _, r := range cmd {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}

		switch r {
		case '\\':
			if inSingleQuote {
				current.WriteRune(r)
			} else {
				escaped = true
			}
		case '\'':
			if !inDoubleQuote {
				inSingleQuote = !inSingleQuote
			} else {
				current.WriteRune(r)
			}
		case '"':
			if !inSingleQuote {
				inDoubleQuote = !inDoubleQuote
			} else {
				current.WriteRune(r)
			}
		case ' ', '\t':
			if inSingleQuote || inDoubleQuote {
				current.WriteRune(r)
			} else if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "{{")
}
