package auth

import (
	"net/url"
	"strings"
)

// RootPath is where logins land when no safe target was requested.
const RootPath = "/"

// SafeRedirect returns next when it is a same-origin relative path, otherwise RootPath.
// Anything with a scheme or host, protocol-relative paths ("//evil"), and backslashes are rejected.
func SafeRedirect(next string) string {
	if next == "" || strings.ContainsAny(next, "\\\r\n\t") {
		return RootPath
	}
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return RootPath
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil || u.Opaque != "" {
		return RootPath
	}
	return next
}
