package http

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	neturl "net/url"
	"strings"
)

// DigestAuth contains the parameters needed for digest authentication
// (RFC 7616). MD5, MD5-sess, SHA-256 and SHA-256-sess are supported with
// qop "auth" or no qop.
type DigestAuth struct {
	Username  string
	Password  string
	Realm     string
	Nonce     string
	URI       string
	Qop       string
	Nc        string
	Cnonce    string
	Opaque    string
	Method    string
	Algorithm string
}

// NewDigestAuth answers the challenge in a WWW-Authenticate header for req.
func NewDigestAuth(challenge string, req *Request) (*DigestAuth, error) {
	if req.DigestAuth == nil {
		return nil, fmt.Errorf("digest auth credentials not provided")
	}
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(challenge)), "digest") {
		return nil, fmt.Errorf("unsupported authentication challenge: %s", challenge)
	}

	params := ParseWWWAuthenticate(challenge)

	method := req.Method
	if method == "" {
		method = "POST"
	}
	auth := &DigestAuth{
		Username:  req.DigestAuth.Username,
		Password:  req.DigestAuth.Password,
		Realm:     params["realm"],
		Nonce:     params["nonce"],
		Opaque:    params["opaque"],
		Algorithm: params["algorithm"],
		Method:    method,
		URI:       req.URL,
	}
	if u, err := neturl.Parse(req.BuildURL()); err == nil {
		auth.URI = u.RequestURI()
	}

	if qop := params["qop"]; qop != "" {
		if !containsToken(qop, "auth") {
			return nil, fmt.Errorf("unsupported digest qop %q", qop)
		}
		auth.Qop = "auth"
		auth.Nc = "00000001"
		cnonce, err := GenerateCnonce()
		if err != nil {
			return nil, err
		}
		auth.Cnonce = cnonce
	}

	if _, err := auth.newHash(); err != nil {
		return nil, err
	}
	return auth, nil
}

// ParseWWWAuthenticate parses the parameters of a Digest challenge. Quoted
// values may contain commas and escaped quotes.
func ParseWWWAuthenticate(header string) map[string]string {
	result := make(map[string]string)

	s := strings.TrimSpace(header)
	if len(s) >= 6 && strings.EqualFold(s[:6], "digest") {
		s = s[6:]
	}

	for {
		s = strings.TrimLeft(s, " \t,")
		if s == "" {
			return result
		}

		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			return result
		}
		key := strings.ToLower(strings.TrimSpace(s[:eq]))
		s = strings.TrimLeft(s[eq+1:], " \t")

		var value string
		if strings.HasPrefix(s, `"`) {
			var b strings.Builder
			i := 1
			for ; i < len(s); i++ {
				if s[i] == '\\' && i+1 < len(s) {
					i++
					b.WriteByte(s[i])
					continue
				}
				if s[i] == '"' {
					break
				}
				b.WriteByte(s[i])
			}
			value = b.String()
			if i < len(s) {
				i++
			}
			s = s[i:]
		} else {
			end := strings.IndexByte(s, ',')
			if end < 0 {
				end = len(s)
			}
			value = strings.TrimSpace(s[:end])
			s = s[end:]
		}
		result[key] = value
	}
}

func containsToken(list, token string) bool {
	for _, t := range strings.Split(list, ",") {
		if strings.EqualFold(strings.TrimSpace(t), token) {
			return true
		}
	}
	return false
}

func (d *DigestAuth) newHash() (func() hash.Hash, error) {
	switch strings.TrimSuffix(strings.ToUpper(d.Algorithm), "-SESS") {
	case "", "MD5":
		return md5.New, nil
	case "SHA-256":
		return sha256.New, nil
	}
	return nil, fmt.Errorf("unsupported digest algorithm %q", d.Algorithm)
}

func (d *DigestAuth) hashHex(newHash func() hash.Hash, s string) string {
	h := newHash()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}

// ComputeDigestResponse calculates the digest response hash
func (d *DigestAuth) ComputeDigestResponse() string {
	newHash, err := d.newHash()
	if err != nil {
		newHash = md5.New
	}

	ha1 := d.hashHex(newHash, fmt.Sprintf("%s:%s:%s", d.Username, d.Realm, d.Password))
	if strings.HasSuffix(strings.ToUpper(d.Algorithm), "-SESS") {
		ha1 = d.hashHex(newHash, fmt.Sprintf("%s:%s:%s", ha1, d.Nonce, d.Cnonce))
	}

	ha2 := d.hashHex(newHash, fmt.Sprintf("%s:%s", d.Method, d.URI))

	if d.Qop == "auth" {
		return d.hashHex(newHash, fmt.Sprintf("%s:%s:%s:%s:%s:%s", ha1, d.Nonce, d.Nc, d.Cnonce, d.Qop, ha2))
	}
	return d.hashHex(newHash, fmt.Sprintf("%s:%s:%s", ha1, d.Nonce, ha2))
}

// BuildAuthorizationHeader creates the Authorization header value
func (d *DigestAuth) BuildAuthorizationHeader() string {
	parts := []string{
		fmt.Sprintf(`username="%s"`, d.Username),
		fmt.Sprintf(`realm="%s"`, d.Realm),
		fmt.Sprintf(`nonce="%s"`, d.Nonce),
		fmt.Sprintf(`uri="%s"`, d.URI),
		fmt.Sprintf(`response="%s"`, d.ComputeDigestResponse()),
	}

	if d.Algorithm != "" {
		parts = append(parts, "algorithm="+d.Algorithm)
	}

	if d.Qop != "" {
		parts = append(parts,
			"qop="+d.Qop,
			"nc="+d.Nc,
			fmt.Sprintf(`cnonce="%s"`, d.Cnonce),
		)
	}

	if d.Opaque != "" {
		parts = append(parts, fmt.Sprintf(`opaque="%s"`, d.Opaque))
	}

	return "Digest " + strings.Join(parts, ", ")
}

// GenerateCnonce generates a random client nonce
func GenerateCnonce() (string, error) {
	b := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
