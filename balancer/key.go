package balancer

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// KeyFunc extracts the placement key of a request.
type KeyFunc func(r *http.Request) string

// Hash key kinds.
const (
	KEY_REMOTE_ADDR = "remote_addr"
	KEY_PATH        = "path"
	KEY_HEADER      = "header:"
	KEY_COOKIE      = "cookie:"
	KEY_QUERY       = "query:"
)

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ParseHashKey returns the KeyFunc for hashKey:
//
//	remote_addr     client host, without port (default)
//	path            request path
//	header:<Name>   request header
//	cookie:<Name>   cookie value
//	query:<name>    query parameter
//
// Requests missing the header, cookie or query parameter fall back to the
// client host.
func ParseHashKey(hashKey string) (KeyFunc, error) {
	switch {
	case hashKey == "" || hashKey == KEY_REMOTE_ADDR:
		return remoteHost, nil
	case hashKey == KEY_PATH:
		return func(r *http.Request) string { return r.URL.Path }, nil
	}

	kind, name, ok := strings.Cut(hashKey, ":")
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHashKey, hashKey)
	}
	switch kind + ":" {
	case KEY_HEADER:
		name = http.CanonicalHeaderKey(name)
		return func(r *http.Request) string {
			if v := r.Header.Get(name); v != "" {
				return v
			}
			return remoteHost(r)
		}, nil
	case KEY_COOKIE:
		return func(r *http.Request) string {
			if c, err := r.Cookie(name); err == nil && c.Value != "" {
				return c.Value
			}
			return remoteHost(r)
		}, nil
	case KEY_QUERY:
		return func(r *http.Request) string {
			if v := r.URL.Query().Get(name); v != "" {
				return v
			}
			return remoteHost(r)
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidHashKey, hashKey)
}
