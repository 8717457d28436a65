// Package remote holds the HTTP plumbing shared by the API clients: a client
// with a fixed timeout, response reading and the non-2xx error type.
package remote

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxErrorBody caps how much of a failed response body is kept.
const MaxErrorBody = 500

// StatusError reports a non-2xx response. Body is truncated to MaxErrorBody bytes.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: API returned %d: %s", e.URL, e.Status, e.Body)
}

func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			MaxIdleConns:    10,
			IdleConnTimeout: 90 * time.Second,
		},
	}
}

// ReadBody drains resp and returns its body, or a *StatusError when the
// status is outside 2xx.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("http read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		u := ""
		if resp.Request != nil && resp.Request.URL != nil {
			u = RedactURL(resp.Request.URL)
		}
		return nil, &StatusError{
			URL:    u,
			Status: resp.StatusCode,
			Body:   TruncateString(string(body), MaxErrorBody),
		}
	}
	return body, nil
}

// RedactURL is URL.Redacted that also masks query values whose name looks
// like a credential.
func RedactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	q := u.Query()
	masked := false
	for name := range q {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "key") || strings.Contains(lower, "token") || strings.Contains(lower, "secret") {
			q.Set(name, "xxxxx")
			masked = true
		}
	}
	if !masked {
		return u.Redacted()
	}
	c := *u
	c.RawQuery = q.Encode()
	return c.Redacted()
}

// TruncateString cuts s to at most maxBytes without splitting a UTF-8 sequence.
func TruncateString(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	b := []byte(s[:maxBytes])
	for len(b) > 0 && !utf8.Valid(b) {
		b = b[:len(b)-1]
	}
	return string(b)
}
