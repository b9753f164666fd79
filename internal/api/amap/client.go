package amap

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xco2/tripspot/app/observability/metrics"
	"github.com/xco2/tripspot/internal/types"
)

const DefaultBaseURL = "https://restapi.amap.com"

// strategy 0 asks the driving planner for the fastest route.
const strategyFastest = "0"

// Credentials identify the caller to the AMap web service. When Secret is set
// every request carries a digital signature computed with it.
type Credentials struct {
	Key    string
	Secret string
}

// CredentialsFrom picks the mapping credentials out of the settings record.
func CredentialsFrom(s types.Settings) Credentials {
	return Credentials{Key: s.AMapKey, Secret: s.AMapSecurityCode}
}

// LngLat is a GCJ-02 coordinate in AMap's lng,lat order.
type LngLat struct {
	Lng float64
	Lat float64
}

// PointOf returns the coordinate of a located place.
func PointOf(p types.Place) LngLat {
	return LngLat{Lng: p.Longitude, Lat: p.Latitude}
}

func (p LngLat) String() string {
	return strconv.FormatFloat(p.Lng, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat, 'f', 6, 64)
}

// ParseLngLat parses AMap's "lng,lat" text.
func ParseLngLat(s string) (LngLat, error) {
	lng, lat, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return LngLat{}, fmt.Errorf("location %q is not lng,lat", s)
	}
	x, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return LngLat{}, fmt.Errorf("longitude %q: %w", lng, err)
	}
	y, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return LngLat{}, fmt.Errorf("latitude %q: %w", lat, err)
	}
	return LngLat{Lng: x, Lat: y}, nil
}

// Leg is the live driving estimate between two points.
type Leg struct {
	Seconds float64
	Meters  float64
}

// InfocodeInvalidSignature is returned when sig does not match the key's secret.
const InfocodeInvalidSignature = "10007"

// APIError is a response whose status is not "1".
type APIError struct {
	Info     string
	Infocode string
}

func (e *APIError) Error() string {
	if e.Infocode == InfocodeInvalidSignature {
		return fmt.Sprintf("amap error %s: %s (amapSecurityCode must be the web service signing secret, not the JS API securityJsCode)", e.Infocode, e.Info)
	}
	return fmt.Sprintf("amap error %s: %s", e.Infocode, e.Info)
}

// Unwrap classifies the infocode. 100xx codes are key, signature and quota
// problems and 3xxxx codes are engine faults; both stop a batch. Everything
// else means the query itself could not be answered.
func (e *APIError) Unwrap() error {
	if strings.HasPrefix(e.Infocode, "100") || strings.HasPrefix(e.Infocode, "3") {
		return types.ErrServiceUnavailable
	}
	return types.ErrNoMatch
}

type envelope struct {
	Status   string `json:"status"`
	Info     string `json:"info"`
	Infocode string `json:"infocode"`
}

type geocodeResponse struct {
	envelope
	Count    string `json:"count"`
	Geocodes []struct {
		Location string `json:"location"`
	} `json:"geocodes"`
}

type drivingResponse struct {
	envelope
	Route struct {
		Paths []struct {
			Distance string `json:"distance"`
			Duration string `json:"duration"`
		} `json:"paths"`
	} `json:"route"`
}

// Client calls the AMap REST web service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient returns a client for baseURL. A nil httpClient gets a traced client with the given timeout.
func NewClient(baseURL string, httpClient *http.Client, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// Geocode resolves a free-form address, optionally scoped to a city, to the first candidate.
// A completed lookup without candidates returns types.ErrNoMatch.
func (c *Client) Geocode(ctx context.Context, creds Credentials, address, city string) (LngLat, error) {
	ctx, span := otel.Tracer("AMapClient").Start(ctx, "Geocode", trace.WithAttributes(
		attribute.String("amap.address", address),
		attribute.String("amap.city", city),
	))
	defer span.End()

	q := url.Values{}
	q.Set("address", address)
	if city != "" {
		q.Set("city", city)
	}

	var r geocodeResponse
	if err := c.get(ctx, "geocode", "/v3/geocode/geo", creds, q, &r); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "geocode failed")
		return LngLat{}, err
	}
	if len(r.Geocodes) == 0 || r.Count == "0" {
		span.SetStatus(codes.Ok, "no match")
		return LngLat{}, types.ErrNoMatch
	}
	p, err := ParseLngLat(r.Geocodes[0].Location)
	if err != nil {
		c.logger.WarnContext(ctx, "amap_bad_location", slog.String("location", r.Geocodes[0].Location))
		return LngLat{}, fmt.Errorf("%w: %v", types.ErrNoMatch, err)
	}
	span.SetStatus(codes.Ok, "geocoded")
	return p, nil
}

// Driving returns the fastest driving route estimate between two points.
// types.ErrNoMatch means the planner found no route.
func (c *Client) Driving(ctx context.Context, creds Credentials, from, to LngLat) (Leg, error) {
	ctx, span := otel.Tracer("AMapClient").Start(ctx, "Driving", trace.WithAttributes(
		attribute.String("amap.origin", from.String()),
		attribute.String("amap.destination", to.String()),
	))
	defer span.End()

	q := url.Values{}
	q.Set("origin", from.String())
	q.Set("destination", to.String())
	q.Set("strategy", strategyFastest)

	var r drivingResponse
	if err := c.get(ctx, "driving", "/v3/direction/driving", creds, q, &r); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "driving failed")
		return Leg{}, err
	}
	if len(r.Route.Paths) == 0 {
		return Leg{}, types.ErrNoMatch
	}
	path := r.Route.Paths[0]
	seconds, err := strconv.ParseFloat(path.Duration, 64)
	if err != nil || seconds < 0 {
		return Leg{}, fmt.Errorf("%w: duration %q", types.ErrMalformedResponse, path.Duration)
	}
	meters, _ := strconv.ParseFloat(path.Distance, 64)
	span.SetStatus(codes.Ok, "route found")
	return Leg{Seconds: seconds, Meters: meters}, nil
}

func (c *Client) get(ctx context.Context, op, path string, creds Credentials, q url.Values, dst interface{ status() envelope }) error {
	if creds.Key == "" {
		return fmt.Errorf("amap key: %w", types.ErrConfiguration)
	}
	q.Set("key", creds.Key)
	q.Set("output", "JSON")
	if creds.Secret != "" {
		q.Set("sig", Sign(q, creds.Secret))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build amap request: %w", err)
	}

	m := metrics.Get()
	t0 := time.Now()
	c.logger.DebugContext(ctx, "amap_req", slog.String("op", op))

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "amap_http_error", slog.String("op", op), slog.Any("error", err))
		m.ObserveExternal(ctx, "amap", op, "transport_error", t0)
		return fmt.Errorf("amap %s: %w: %v", op, types.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		m.ObserveExternal(ctx, "amap", op, "http_error", t0)
		return fmt.Errorf("amap %s: %w: http status %d", op, types.ErrServiceUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		c.logger.ErrorContext(ctx, "amap_decode_error", slog.String("op", op), slog.Any("error", err))
		m.ObserveExternal(ctx, "amap", op, "decode_error", t0)
		return fmt.Errorf("amap %s: %w: %v", op, types.ErrMalformedResponse, err)
	}

	env := dst.status()
	c.logger.DebugContext(ctx, "amap_resp",
		slog.String("op", op),
		slog.String("status", env.Status),
		slog.String("infocode", env.Infocode),
		slog.Int64("duration_ms", time.Since(t0).Milliseconds()),
	)
	if env.Status != "1" {
		apiErr := &APIError{Info: env.Info, Infocode: env.Infocode}
		outcome := "no_match"
		if errors.Is(apiErr, types.ErrServiceUnavailable) {
			outcome = "rejected"
		}
		m.ObserveExternal(ctx, "amap", op, outcome, t0)
		return fmt.Errorf("amap %s: %w", op, apiErr)
	}
	m.ObserveExternal(ctx, "amap", op, "ok", t0)
	return nil
}

func (e envelope) status() envelope { return e }

// Sign computes the web service digital signature: the md5 of the
// key-sorted, unescaped query followed by the secret.
func Sign(q url.Values, secret string) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		if k == "sig" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(q.Get(k))
	}
	b.WriteString(secret)
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
