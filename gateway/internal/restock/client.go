package restock

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/inventra-labs/inventra/common/logging"
	"github.com/inventra-labs/inventra/gateway/internal/metrics"
	"github.com/inventra-labs/inventra/gateway/internal/upstream"
)

const (
	ServiceStock      = "stock"
	ServicePrediction = "prediction"
)

// ErrProductNotFound is returned when the stock service does not know the product.
var ErrProductNotFound = errors.New("product not found")

// UpstreamError is a failed call to one of the services.
type UpstreamError struct {
	Service string
	Kind    upstream.Kind
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s service: %s: %v", e.Service, e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

type Config struct {
	StockURL      *url.URL
	PredictionURL *url.URL
	Timeout       time.Duration

	// Consecutive failures that open a breaker, and how long it stays open.
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// Client fetches stock and forecast concurrently, each behind its own
// circuit breaker.
type Client struct {
	cfg        Config
	http       *http.Client
	stock      *gobreaker.CircuitBreaker
	prediction *gobreaker.CircuitBreaker
	logger     *logging.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger *logging.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 5
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = logging.Default()
	}

	c := &Client{cfg: cfg, http: httpClient, logger: logger}
	c.stock = c.newBreaker(ServiceStock)
	c.prediction = c.newBreaker(ServicePrediction)
	return c
}

func (c *Client) newBreaker(name string) *gobreaker.CircuitBreaker {
	metrics.BreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     c.cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= c.cfg.BreakerFailures
		},
		// A call abandoned because its sibling failed says nothing about this upstream.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			c.logger.Warn("Circuit breaker changed state",
				logging.Upstream(name),
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
}

type stockResponse struct {
	CurrentStock int64 `json:"current_stock"`
}

type forecastRequest struct {
	ProductID int64 `json:"product_id"`
}

type forecastResponse struct {
	PredictedDemand int64 `json:"predicted_demand_next_7_days"`
}

// Recommend fetches stock and forecast for productID and classifies the
// result. header carries request headers to forward, such as Authorization.
func (c *Client) Recommend(ctx context.Context, productID int64, header http.Header) (Recommendation, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var stock stockResponse
	var forecast forecastResponse

	g, gctx := errgroup.WithContext(callCtx)
	g.Go(func() error {
		u := c.cfg.StockURL.JoinPath("stock", strconv.FormatInt(productID, 10))
		return c.call(ctx, gctx, c.stock, ServiceStock, http.MethodGet, u, nil, header, &stock)
	})
	g.Go(func() error {
		u := c.cfg.PredictionURL.JoinPath("ml", "forecast")
		return c.call(ctx, gctx, c.prediction, ServicePrediction, http.MethodPost, u,
			forecastRequest{ProductID: productID}, header, &forecast)
	})
	if err := g.Wait(); err != nil {
		return Recommendation{}, err
	}

	rec := Recommend(productID, stock.CurrentStock, forecast.PredictedDemand)
	metrics.RestockRecommendations.WithLabelValues(string(rec.RiskLevel)).Inc()
	return rec, nil
}

// statusError is a non-2xx upstream answer. 5xx counts against the breaker.
type statusError struct {
	status int
}

func (e *statusError) Error() string { return fmt.Sprintf("upstream returned status %d", e.status) }

func (c *Client) call(clientCtx, ctx context.Context, cb *gobreaker.CircuitBreaker, service, method string,
	u *url.URL, body any, header http.Header, dst any) error {
	var status int
	_, err := cb.Execute(func() (interface{}, error) {
		resp, err := c.do(ctx, method, u, body, header)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		if status >= 500 {
			return nil, &statusError{status: status}
		}
		if status < 200 || status > 299 {
			return nil, nil
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(dst); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return nil, nil
	})

	switch {
	case err == nil && status == http.StatusNotFound && service == ServiceStock:
		return ErrProductNotFound
	case err == nil && (status < 200 || status > 299):
		return &UpstreamError{Service: service, Kind: upstream.KindInternal, Err: &statusError{status: status}}
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &UpstreamError{Service: service, Kind: upstream.KindUnavailable, Err: err}
	default:
		var se *statusError
		if errors.As(err, &se) {
			return &UpstreamError{Service: service, Kind: upstream.KindInternal, Err: err}
		}
		return &UpstreamError{Service: service, Kind: upstream.Classify(clientCtx, ctx, err), Err: err}
	}
}

func (c *Client) do(ctx context.Context, method string, u *url.URL, body any, header http.Header) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = append([]string(nil), v...)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}
