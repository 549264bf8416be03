// Package routes holds the gateway's static route table.
//
// A Table is built once at startup and never mutated, so lookups need no
// locking.
package routes

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/inventra-labs/inventra/gateway/internal/models"
)

var ErrNoRoutes = errors.New("route table is empty")

var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// Route is a validated route descriptor.
type Route struct {
	Name            string
	Prefix          string
	Upstream        *url.URL
	Rewrite         string
	AllowedRoles    map[models.Role]bool
	MethodOverrides map[models.Role]map[string]bool
	Timeout         time.Duration
}

// Table maps public prefixes to routes.
type Table struct {
	routes []*Route // longest prefix first
	byName map[string]*Route
}

// LoadOptions controls how descriptors are resolved.
type LoadOptions struct {
	// LookupEnv resolves UpstreamEnv; defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
	Logger    *slog.Logger
}

// Load validates descriptors and builds a Table. Any error is a deployment
// error and should stop the process.
func Load(descs []Descriptor, opts LoadOptions) (*Table, error) {
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	t := &Table{byName: make(map[string]*Route)}
	prefixes := make(map[string]string)

	for i, d := range descs {
		label := d.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}

		upstream := strings.TrimSpace(d.Upstream)
		if upstream == "" && d.UpstreamEnv != "" {
			upstream, _ = opts.LookupEnv(d.UpstreamEnv)
			upstream = strings.TrimSpace(upstream)
		}
		if upstream == "" {
			if d.Optional {
				opts.Logger.Warn("Route has no upstream target, skipping",
					slog.String("route", label),
					slog.String("prefix", d.Prefix),
					slog.String("upstream_env", d.UpstreamEnv),
				)
				continue
			}
			return nil, fmt.Errorf("route %s: missing upstream target", label)
		}

		r, err := buildRoute(d, upstream)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", label, err)
		}
		if other, dup := prefixes[r.Prefix]; dup {
			return nil, fmt.Errorf("route %s: prefix %q already used by route %s", label, r.Prefix, other)
		}
		if _, dup := t.byName[r.Name]; dup {
			return nil, fmt.Errorf("route %s: duplicate route name", label)
		}
		prefixes[r.Prefix] = r.Name
		t.byName[r.Name] = r
		t.routes = append(t.routes, r)
	}

	if len(t.routes) == 0 {
		return nil, ErrNoRoutes
	}

	sort.SliceStable(t.routes, func(i, j int) bool {
		return len(t.routes[i].Prefix) > len(t.routes[j].Prefix)
	})
	return t, nil
}

func buildRoute(d Descriptor, upstream string) (*Route, error) {
	if d.Name == "" {
		return nil, errors.New("name is required")
	}

	prefix := strings.TrimSpace(d.Prefix)
	if !strings.HasPrefix(prefix, "/") {
		return nil, fmt.Errorf("prefix %q must start with /", d.Prefix)
	}
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return nil, errors.New("prefix must not be the root path")
	}

	u, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream %q: %w", upstream, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("upstream %q must be an absolute http(s) URL", upstream)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("upstream %q must not carry a query or fragment", upstream)
	}

	rewrite := d.Rewrite
	if rewrite != "" && !strings.HasPrefix(rewrite, "/") {
		return nil, fmt.Errorf("rewrite %q must start with /", d.Rewrite)
	}

	if len(d.AllowedRoles) == 0 {
		return nil, errors.New("allowed_roles must not be empty")
	}
	allowed := make(map[models.Role]bool, len(d.AllowedRoles))
	for _, s := range d.AllowedRoles {
		role, err := models.ParseRole(s)
		if err != nil {
			return nil, fmt.Errorf("allowed_roles: %w", err)
		}
		allowed[role] = true
	}

	overrides := make(map[models.Role]map[string]bool, len(d.MethodOverrides))
	for s, methods := range d.MethodOverrides {
		role, err := models.ParseRole(s)
		if err != nil {
			return nil, fmt.Errorf("method_overrides: %w", err)
		}
		if !allowed[role] {
			return nil, fmt.Errorf("method_overrides: role %q is not in allowed_roles", role)
		}
		if len(methods) == 0 {
			return nil, fmt.Errorf("method_overrides: role %q lists no methods", role)
		}
		set := make(map[string]bool, len(methods))
		for _, m := range methods {
			m = strings.ToUpper(strings.TrimSpace(m))
			if !knownMethods[m] {
				return nil, fmt.Errorf("method_overrides: unknown method %q", m)
			}
			set[m] = true
		}
		overrides[role] = set
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Route{
		Name:            d.Name,
		Prefix:          prefix,
		Upstream:        u,
		Rewrite:         rewrite,
		AllowedRoles:    allowed,
		MethodOverrides: overrides,
		Timeout:         timeout,
	}, nil
}

// Match returns the route with the longest prefix covering path. A prefix
// matches the path itself or anything below it, never a sibling such as
// /api/stockpile for /api/stock. A nil Table matches nothing.
func (t *Table) Match(path string) (*Route, bool) {
	if t == nil {
		return nil, false
	}
	for _, r := range t.routes {
		if r.matches(path) {
			return r, true
		}
	}
	return nil, false
}

// Lookup returns a route by name.
func (t *Table) Lookup(name string) (*Route, bool) {
	if t == nil {
		return nil, false
	}
	r, ok := t.byName[name]
	return r, ok
}

// Routes returns routes ordered longest prefix first.
func (t *Table) Routes() []*Route {
	if t == nil {
		return nil
	}
	out := make([]*Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Len returns the number of routes.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.routes)
}

func (r *Route) matches(path string) bool {
	if !strings.HasPrefix(path, r.Prefix) {
		return false
	}
	rest := path[len(r.Prefix):]
	return rest == "" || rest[0] == '/'
}

// RewritePath swaps the route prefix of escapedPath for the rewrite. The
// remainder is kept verbatim.
func (r *Route) RewritePath(escapedPath string) string {
	rest := strings.TrimPrefix(escapedPath, r.Prefix)
	out := strings.TrimSuffix(r.Rewrite, "/") + rest
	if out == "" {
		return "/"
	}
	if !strings.HasPrefix(out, "/") {
		out = "/" + out
	}
	return out
}

// TargetURL builds the upstream URL for an inbound request URL. The query
// string is carried over untouched.
func (r *Route) TargetURL(in *url.URL) *url.URL {
	escaped := joinPath(r.Upstream.EscapedPath(), r.RewritePath(in.EscapedPath()))

	out := &url.URL{
		Scheme:   r.Upstream.Scheme,
		User:     r.Upstream.User,
		Host:     r.Upstream.Host,
		RawPath:  escaped,
		RawQuery: in.RawQuery,
	}
	if p, err := url.PathUnescape(escaped); err == nil {
		out.Path = p
	} else {
		out.Path = escaped
	}
	return out
}

// Allows reports base role-set membership.
func (r *Route) Allows(role models.Role) bool {
	return r.AllowedRoles[role]
}

// MethodAllowed applies the role's method override, if any.
func (r *Route) MethodAllowed(role models.Role, method string) bool {
	methods, ok := r.MethodOverrides[role]
	if !ok {
		return true
	}
	return methods[method]
}

// RoleNames returns the allowed roles in a stable order, for logs and CLI output.
func (r *Route) RoleNames() []string {
	names := make([]string, 0, len(r.AllowedRoles))
	for _, role := range models.Roles() {
		if r.AllowedRoles[role] {
			names = append(names, string(role))
		}
	}
	return names
}

func joinPath(base, p string) string {
	base = strings.TrimSuffix(base, "/")
	if base == "" {
		return p
	}
	return base + p
}
