// Package upstream classifies failures talking to inventory services and
// renders them as gateway responses.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/inventra-labs/inventra/common/httputil"
	"github.com/inventra-labs/inventra/gateway/internal/metrics"
)

// Kind is the class of an upstream transport failure.
type Kind int

const (
	KindInternal Kind = iota
	KindUnavailable
	KindTimeout
	// KindCanceled means the inbound client went away first.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		return "internal"
	}
}

// Status is the HTTP status reported for k.
func (k Kind) Status() int {
	switch k {
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindCanceled:
		return metrics.StatusClientClosed
	default:
		return http.StatusInternalServerError
	}
}

// Classify maps a round trip error to a Kind. clientCtx is the inbound
// request context; when it is done the failure is the client's, whatever err
// says. callCtx carries the per-call deadline and may be nil.
func Classify(clientCtx, callCtx context.Context, err error) Kind {
	if clientCtx != nil && clientCtx.Err() != nil {
		return KindCanceled
	}
	if callCtx != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}

	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindUnavailable
	case errors.As(err, &dnsErr) && dnsErr.IsNotFound:
		return KindUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	default:
		return KindInternal
	}
}

// WriteError writes the JSON:API error for kind. service names the upstream
// in the detail; transport details stay in the logs. KindCanceled writes
// nothing.
func WriteError(w http.ResponseWriter, kind Kind, service string) {
	switch kind {
	case KindCanceled:
		return
	case KindUnavailable:
		httputil.WriteJSONAPIError(w, http.StatusServiceUnavailable, "upstream_unavailable",
			"Service Unavailable", fmt.Sprintf("The %s service is unavailable", service))
	case KindTimeout:
		httputil.WriteJSONAPIError(w, http.StatusGatewayTimeout, "upstream_timeout",
			"Gateway Timeout", fmt.Sprintf("The %s service did not respond in time", service))
	default:
		httputil.WriteJSONAPIError(w, http.StatusInternalServerError, "gateway_internal",
			"Internal Server Error", "The gateway could not complete the request")
	}
}
