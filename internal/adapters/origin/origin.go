package origin

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Normalize validates a browser Origin header and returns its canonical
// scheme://host[:port] form. Scheme and host are lowercased and default
// ports are stripped so equivalent origins compare equal. The special
// value "null" is allowed and returned as-is.
func Normalize(header string) (string, bool) {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return "", false
	}
	if trimmed == "null" {
		return "null", true
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	if u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	if raw := u.Port(); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 16)
		if err != nil || n == 0 {
			return "", false
		}
		if !(scheme == "http" && n == 80) && !(scheme == "https" && n == 443) {
			host = host + ":" + strconv.FormatUint(n, 10)
		}
	}

	return scheme + "://" + host, true
}

// Allowed reports whether the Origin header may access the server given the
// configured allowlist. "*" admits any well-formed origin; other entries
// are compared in normalized form.
func Allowed(header string, allowlist []string) bool {
	norm, ok := Normalize(header)
	if !ok {
		return false
	}
	for _, entry := range allowlist {
		if entry == "*" {
			return true
		}
		if n, ok := Normalize(entry); ok && n == norm {
			return true
		}
	}
	return false
}

// Middleware applies the allowlist as CORS policy: disallowed cross-origin
// requests are rejected, allowed ones get the appropriate response headers.
// Requests without an Origin header (same-origin or non-browser) pass
// through untouched.
func Middleware(allowlist []string, credentials bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Origin")
		if header == "" {
			c.Next()
			return
		}
		if !Allowed(header, allowlist) {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		c.Header("Vary", "Origin")
		if credentials {
			c.Header("Access-Control-Allow-Origin", header)
			c.Header("Access-Control-Allow-Credentials", "true")
		} else {
			c.Header("Access-Control-Allow-Origin", "*")
		}

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
