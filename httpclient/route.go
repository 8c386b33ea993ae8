package httpclient

import (
	"net/http"
	"net/url"
	"strconv"
)

// Route is the target an outbound request is sent to.
// A zero Route means the request names no target host.
type Route struct {
	Target *url.URL
}

// RouteFor derives the route from the request URL, falling back to the
// Host field when the URL carries no host.
func RouteFor(req *http.Request) Route {
	if req == nil || req.URL == nil {
		return Route{}
	}
	host := req.URL.Host
	if host == "" {
		host = req.Host
	}
	if host == "" {
		return Route{}
	}
	scheme := req.URL.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return Route{Target: &url.URL{Scheme: scheme, Host: host}}
}

// HasTarget reports whether the route names a target host.
func (r Route) HasTarget() bool {
	return r.Target != nil && r.Target.Host != ""
}

// TargetURI returns scheme://host[:port], or "" without a target.
func (r Route) TargetURI() string {
	if !r.HasTarget() {
		return ""
	}
	return r.Target.Scheme + "://" + r.Target.Host
}

// portOf returns the explicit port of u, else the scheme default, else 0.
func portOf(u *url.URL) int {
	if u == nil {
		return 0
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0
		}
		return n
	}
	switch u.Scheme {
	case "http":
		return 80
	case "https":
		return 443
	}
	return 0
}
