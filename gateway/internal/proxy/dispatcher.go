// Package proxy forwards authorized requests to inventory services.
package proxy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/inventra-labs/inventra/common/httputil"
	"github.com/inventra-labs/inventra/common/logging"
	commonmw "github.com/inventra-labs/inventra/common/middleware"
	"github.com/inventra-labs/inventra/gateway/internal/authz"
	"github.com/inventra-labs/inventra/gateway/internal/metrics"
	"github.com/inventra-labs/inventra/gateway/internal/middleware"
	"github.com/inventra-labs/inventra/gateway/internal/routes"
	"github.com/inventra-labs/inventra/gateway/internal/upstream"
)

// Dispatcher verifies, authorizes and forwards requests for the routes of a
// table. Each request makes at most one upstream call and is never retried.
type Dispatcher struct {
	table     *routes.Table
	auth      *middleware.AuthMiddleware
	transport http.RoundTripper
	logger    *logging.Logger
}

type Option func(*Dispatcher)

// WithTransport replaces the upstream round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(d *Dispatcher) { d.transport = rt }
}

func WithLogger(logger *logging.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func NewDispatcher(table *routes.Table, verifier middleware.Verifier, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		table:     table,
		transport: NewTransport(),
		logger:    logging.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.auth = middleware.NewAuthMiddleware(verifier, d.logger)
	return d
}

// NewTransport returns the upstream transport. Compression is left to the
// client and upstream so bodies pass through untouched.
func NewTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
		DisableCompression:    true,
	}
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route, ok := d.table.Match(r.URL.EscapedPath())
	if !ok {
		httputil.WriteNotFoundError(w, "No service is mounted at this path")
		return
	}

	identity := d.auth.Authenticate(w, r)
	if identity == nil {
		metrics.AuthDecisions.WithLabelValues(route.Name, authz.Unauthenticated.String()).Inc()
		return
	}

	decision := authz.Authorize(identity, route, r.Method, r.URL.Path)
	metrics.AuthDecisions.WithLabelValues(route.Name, decision.Outcome.String()).Inc()
	if !decision.Allowed() {
		d.logger.InfoContext(r.Context(), "Request denied",
			logging.Route(route.Name),
			logging.UserID(identity.SubjectID),
			logging.Role(identity.Role.String()),
			logging.Method(r.Method),
			logging.Path(r.URL.Path),
			slog.String("reason", decision.Reason),
		)
		middleware.WriteDecision(w, decision)
		return
	}

	ctx := middleware.WithIdentity(r.Context(), identity)
	d.forward(w, r.WithContext(ctx), route)
}

func (d *Dispatcher) forward(w http.ResponseWriter, r *http.Request, route *routes.Route) {
	ctx, cancel := context.WithTimeout(r.Context(), route.Timeout)
	defer cancel()

	out := d.outboundRequest(ctx, r, route)

	start := time.Now()
	resp, err := d.transport.RoundTrip(out)
	elapsed := time.Since(start)
	metrics.ProxyDuration.WithLabelValues(route.Name).Observe(elapsed.Seconds())

	if err != nil {
		d.fail(w, r, ctx, route, err, elapsed)
		return
	}
	defer resp.Body.Close()

	copyHeaderExcluding(w.Header(), resp.Header, nil)
	w.WriteHeader(resp.StatusCode)
	metrics.ProxyRequestsTotal.WithLabelValues(route.Name, r.Method, strconv.Itoa(resp.StatusCode)).Inc()

	if _, err := io.Copy(w, resp.Body); err != nil && !errors.Is(err, context.Canceled) {
		d.logger.WarnContext(r.Context(), "Upstream response body interrupted",
			logging.Route(route.Name),
			logging.Upstream(route.Upstream.String()),
			logging.Error(err),
		)
	}
}

func (d *Dispatcher) outboundRequest(ctx context.Context, r *http.Request, route *routes.Route) *http.Request {
	target := route.TargetURL(r.URL)

	out := r.Clone(ctx)
	out.URL = target
	out.Host = target.Host
	out.RequestURI = ""
	out.Close = false
	if r.ContentLength == 0 {
		out.Body = nil
	}

	out.Header = make(http.Header, len(r.Header)+6)
	copyHeaderExcluding(out.Header, r.Header, identityHeaders)

	identity := middleware.IdentityFromContext(r.Context())
	out.Header.Set(headerForwardedFor, forwardedFor(r))
	out.Header.Set(headerForwardedHost, r.Host)
	out.Header.Set(headerForwardedProto, forwardedProto(r))
	out.Header.Set(HeaderUserID, identity.SubjectID)
	out.Header.Set(HeaderUserRole, identity.Role.String())
	if reqID := commonmw.GetRequestID(r.Context()); reqID != "" {
		out.Header.Set(headerRequestID, reqID)
	}
	return out
}

func (d *Dispatcher) fail(w http.ResponseWriter, r *http.Request, callCtx context.Context, route *routes.Route, err error, elapsed time.Duration) {
	kind := upstream.Classify(r.Context(), callCtx, err)
	metrics.UpstreamErrors.WithLabelValues(route.Name, kind.String()).Inc()
	metrics.ProxyRequestsTotal.WithLabelValues(route.Name, r.Method, strconv.Itoa(kind.Status())).Inc()

	attrs := []any{
		logging.Route(route.Name),
		logging.Upstream(route.Upstream.String()),
		logging.Method(r.Method),
		logging.Path(r.URL.Path),
		logging.Duration(elapsed),
		logging.Error(err),
	}
	switch kind {
	case upstream.KindCanceled:
		d.logger.InfoContext(r.Context(), "Client closed request before upstream answered", attrs...)
	case upstream.KindInternal:
		d.logger.ErrorContext(r.Context(), "Upstream round trip failed", attrs...)
	default:
		d.logger.WarnContext(r.Context(), "Upstream "+kind.String(), attrs...)
	}

	upstream.WriteError(w, kind, route.Name)
}
