// Package inflation reads the monthly IPCA series from the Banco Central
// do Brasil SGS API and accumulates it over a period.
package inflation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"fipetracker/server/internal/models"
)

const tracerName = "fipetracker/inflation"

// sgsDate is the date layout of SGS query parameters and payloads.
const sgsDate = "02/01/2006"

// Client fetches monthly inflation from an SGS series. Rates of fully
// published periods never change, so they are cached for the lifetime of
// the client.
type Client struct {
	baseURL string
	series  string
	logger  *logrus.Logger
	client  *http.Client
	limiter *rate.Limiter

	cache     map[string]float64
	cacheLock sync.RWMutex
}

// NewClient creates a Client for series (433 is IPCA) under baseURL.
func NewClient(baseURL, series string, timeout time.Duration, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		series:  series,
		logger:  logger,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		// The public API throttles aggressive clients
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 2),
		cache:   make(map[string]float64),
	}
}

// Rate returns the inflation accumulated over the months after start up to
// and including end, as a fraction. A period of zero months has a rate of
// 0. Failures and incomplete data wrap ErrUpstreamUnavailable.
func (c *Client) Rate(ctx context.Context, start, end time.Time) (float64, error) {
	start, end = models.FirstOfMonth(start), models.FirstOfMonth(end)
	months := monthsBetween(start, end)
	if months <= 0 {
		return 0, nil
	}

	cacheKey := fmt.Sprintf("%s|%s", start.Format("2006-01"), end.Format("2006-01"))
	c.cacheLock.RLock()
	if r, ok := c.cache[cacheKey]; ok {
		c.cacheLock.RUnlock()
		return r, nil
	}
	c.cacheLock.RUnlock()

	values, err := c.MonthlyRates(ctx, start.AddDate(0, 1, 0), end)
	if err != nil {
		return 0, err
	}
	if len(values) != months {
		return 0, fmt.Errorf("%w: expected %d monthly rates, got %d", models.ErrUpstreamUnavailable, months, len(values))
	}

	r := Accumulate(values).InexactFloat64()

	c.cacheLock.Lock()
	c.cache[cacheKey] = r
	c.cacheLock.Unlock()

	c.logger.WithFields(logrus.Fields{
		"start":  start.Format("2006-01"),
		"end":    end.Format("2006-01"),
		"months": months,
		"rate":   r,
	}).Debug("Fetched inflation rate")

	return r, nil
}

// MonthlyRates returns the monthly percentages published between from and to inclusive.
func (c *Client) MonthlyRates(ctx context.Context, from, to time.Time) ([]decimal.Decimal, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "inflation.monthly_rates")
	defer span.End()
	span.SetAttributes(
		attribute.String("series", c.series),
		attribute.String("from", from.Format("2006-01")),
		attribute.String("to", to.Format("2006-01")),
	)

	values, err := c.fetch(ctx, from, to)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.WithError(err).WithField("series", c.series).Warn("Inflation request failed")
		return nil, fmt.Errorf("%w: %w", models.ErrUpstreamUnavailable, err)
	}
	return values, nil
}

func (c *Client) fetch(ctx context.Context, from, to time.Time) ([]decimal.Decimal, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"formato":     []string{"json"},
		"dataInicial": []string{from.Format(sgsDate)},
		"dataFinal":   []string{to.Format(sgsDate)},
	}
	addr := fmt.Sprintf("%s/bcdata.sgs.%s/dados?%s", c.baseURL, c.series, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return parseSeries(body)
}

// parseSeries extracts the "valor" fields of an SGS payload:
// [{"data": "01/02/2024", "valor": "0.83"}, ...]
func parseSeries(body []byte) ([]decimal.Decimal, error) {
	var jobj any
	if err := json.Unmarshal(body, &jobj); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if _, ok := jobj.([]any); !ok {
		return nil, fmt.Errorf("unexpected payload %T", jobj)
	}

	jval, err := jsonpath.Get("$[*].valor", jobj)
	if err != nil {
		return nil, fmt.Errorf("failed to extract values: %w", err)
	}
	raw, ok := jval.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected values %T", jval)
	}

	values := make([]decimal.Decimal, 0, len(raw))
	for _, v := range raw {
		var d decimal.Decimal
		switch x := v.(type) {
		case string:
			d, err = decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(x), ",", "."))
			if err != nil {
				return nil, fmt.Errorf("invalid value %q: %w", x, err)
			}
		case float64:
			d = decimal.NewFromFloat(x)
		default:
			return nil, fmt.Errorf("invalid value %v", v)
		}
		values = append(values, d)
	}
	return values, nil
}

// Accumulate compounds monthly percentages into a single fraction:
// prod(1 + v/100) - 1.
func Accumulate(monthlyPct []decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	hundred := decimal.NewFromInt(100)
	acc := one
	for _, v := range monthlyPct {
		acc = acc.Mul(one.Add(v.Div(hundred)))
	}
	return acc.Sub(one)
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}
