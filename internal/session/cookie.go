package session

import (
	"net/http"
	"strings"
	"time"
)

// CookieCodec serializes and parses the single session cookie. The gateway
// never sees net/http requests, so the codec works on raw header values.
type CookieCodec struct {
	Name string
	Path string // optional; omitted from Set-Cookie when empty
}

// Set returns a Set-Cookie value binding the cookie to id for maxAge.
func (c CookieCodec) Set(id string, maxAge time.Duration) string {
	ck := http.Cookie{
		Name:     c.Name,
		Value:    id,
		Path:     c.Path,
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
	}
	return ck.String()
}

// Clear returns a Set-Cookie value that expires the cookie immediately.
func (c CookieCodec) Clear() string {
	ck := http.Cookie{
		Name:     c.Name,
		Value:    "",
		MaxAge:   -1, // serialized as Max-Age=0
		HttpOnly: true,
	}
	return ck.String()
}

// Parse extracts the session id from the request's cookie header values.
// Returns "" when the cookie is absent or unparsable.
func (c CookieCodec) Parse(cookieHeaders []string) string {
	for _, line := range cookieHeaders {
		cookies, err := http.ParseCookie(strings.TrimSpace(line))
		if err != nil {
			continue
		}
		for _, ck := range cookies {
			if ck.Name == c.Name && ck.Value != "" {
				return ck.Value
			}
		}
	}
	return ""
}
