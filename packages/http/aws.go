package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"
)

// AWSAuthCredentials holds credentials for AWS Signature v4 authentication
type AWSAuthCredentials struct {
	AccessKey string
	SecretKey string
	Region    string
	Service   string
}

// signingTime is replaced in tests.
var signingTime = time.Now

// SignAWSRequest signs req with AWS Signature Version 4 and returns the
// Authorization header value. The payload hash is computed by streaming the
// body once. It sets the Host, X-Amz-Date and X-Amz-Content-Sha256 headers
// on req.
func SignAWSRequest(req *Request) (string, error) {
	if req.AWSAuth == nil {
		return "", fmt.Errorf("AWS auth credentials not provided")
	}
	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}

	parsedURL, err := url.Parse(req.BuildURL())
	if err != nil {
		return "", err
	}

	payloadHash, err := hashPayload(req)
	if err != nil {
		return "", fmt.Errorf("hashing payload: %w", err)
	}

	t := signingTime().UTC()
	amzDate := t.Format("20060102T150405Z")
	dateStamp := t.Format("20060102")

	host := parsedURL.Host

	signedHeaders := "host;x-amz-content-sha256;x-amz-date"
	canonicalHeaders := fmt.Sprintf("host:%s\nx-amz-content-sha256:%s\nx-amz-date:%s\n", host, payloadHash, amzDate)

	canonicalURI := parsedURL.EscapedPath()
	if canonicalURI == "" {
		canonicalURI = "/"
	}

	method := req.Method
	if method == "" {
		method = "POST"
	}

	canonicalRequest := strings.Join([]string{
		method,
		canonicalURI,
		createCanonicalQueryString(parsedURL.Query()),
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	credentialScope := fmt.Sprintf("%s/%s/%s/aws4_request",
		dateStamp, req.AWSAuth.Region, req.AWSAuth.Service)

	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		credentialScope,
		sha256Hex([]byte(canonicalRequest)),
	}, "\n")

	signingKey := getSignatureKey(req.AWSAuth.SecretKey, dateStamp, req.AWSAuth.Region, req.AWSAuth.Service)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	req.Headers["Host"] = host
	req.Headers["X-Amz-Date"] = amzDate
	req.Headers["X-Amz-Content-Sha256"] = payloadHash

	return fmt.Sprintf("AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		req.AWSAuth.AccessKey, credentialScope, signedHeaders, signature), nil
}

func hashPayload(req *Request) (string, error) {
	body, _, err := req.openBody()
	if err != nil {
		return "", err
	}
	defer body.Close()

	h := sha256.New()
	if _, err := io.Copy(h, body); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func createCanonicalQueryString(values url.Values) string {
	if len(values) == 0 {
		return ""
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []string
	for _, k := range keys {
		vals := values[k]
		sort.Strings(vals)
		for _, v := range vals {
			pairs = append(pairs, awsEscape(k)+"="+awsEscape(v))
		}
	}

	return strings.Join(pairs, "&")
}

// awsEscape percent-encodes everything except RFC 3986 unreserved characters.
func awsEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

func getSignatureKey(secretKey, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), dateStamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, "aws4_request")
}
