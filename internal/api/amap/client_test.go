package amap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xco2/tripspot/internal/types"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.Client(), 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_Geocode(t *testing.T) {
	ctx := context.Background()
	creds := Credentials{Key: "test-key"}

	t.Run("first candidate wins", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v3/geocode/geo", r.URL.Path)
			assert.Equal(t, "成都武侯祠", r.URL.Query().Get("address"))
			assert.Equal(t, "成都", r.URL.Query().Get("city"))
			assert.Equal(t, "test-key", r.URL.Query().Get("key"))
			assert.Empty(t, r.URL.Query().Get("sig"))
			_, _ = io.WriteString(w, `{"status":"1","info":"OK","infocode":"10000","count":"2",
				"geocodes":[{"location":"104.048200,30.646300"},{"location":"1,1"}]}`)
		})

		p, err := c.Geocode(ctx, creds, "成都武侯祠", "成都")
		require.NoError(t, err)
		assert.InDelta(t, 104.0482, p.Lng, 1e-9)
		assert.InDelta(t, 30.6463, p.Lat, 1e-9)
	})

	t.Run("no candidates", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"status":"1","info":"OK","infocode":"10000","count":"0","geocodes":[]}`)
		})

		_, err := c.Geocode(ctx, creds, "不存在的地方", "")
		assert.ErrorIs(t, err, types.ErrNoMatch)
	})

	t.Run("invalid key stops the caller", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"status":"0","info":"INVALID_USER_KEY","infocode":"10001"}`)
		})

		_, err := c.Geocode(ctx, creds, "锦里", "成都")
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrServiceUnavailable)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "10001", apiErr.Infocode)
	})

	t.Run("bad signature names the security code", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"status":"0","info":"INVALID_USER_SIGNATURE","infocode":"10007"}`)
		})

		_, err := c.Geocode(ctx, Credentials{Key: "k", Secret: "js-code"}, "锦里", "成都")
		assert.ErrorIs(t, err, types.ErrServiceUnavailable)
		assert.Contains(t, err.Error(), "amapSecurityCode")
	})

	t.Run("parameter errors count as no match", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"status":"0","info":"INVALID_PARAMS","infocode":"20000"}`)
		})

		_, err := c.Geocode(ctx, creds, "???", "")
		assert.ErrorIs(t, err, types.ErrNoMatch)
	})

	t.Run("http failure", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := c.Geocode(ctx, creds, "锦里", "成都")
		assert.ErrorIs(t, err, types.ErrServiceUnavailable)
	})

	t.Run("undecodable body is malformed", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `<html>gateway</html>`)
		})

		_, err := c.Geocode(ctx, creds, "锦里", "成都")
		assert.ErrorIs(t, err, types.ErrMalformedResponse)
		assert.False(t, types.IsRetryable(err))
	})

	t.Run("missing key", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected without a key")
		})

		_, err := c.Geocode(ctx, Credentials{}, "锦里", "成都")
		assert.ErrorIs(t, err, types.ErrConfiguration)
	})

	t.Run("signed when a secret is configured", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, Sign(q, "s3cret"), q.Get("sig"))
			_, _ = io.WriteString(w, `{"status":"1","count":"1","geocodes":[{"location":"104.0,30.0"}]}`)
		})

		_, err := c.Geocode(ctx, Credentials{Key: "k", Secret: "s3cret"}, "锦里", "成都")
		require.NoError(t, err)
	})
}

func TestClient_Driving(t *testing.T) {
	ctx := context.Background()
	creds := Credentials{Key: "test-key"}
	from := LngLat{Lng: 104.0482, Lat: 30.6463}
	to := LngLat{Lng: 104.0503, Lat: 30.6448}

	t.Run("fastest path duration", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "/v3/direction/driving", r.URL.Path)
			assert.Equal(t, "104.048200,30.646300", q.Get("origin"))
			assert.Equal(t, "104.050300,30.644800", q.Get("destination"))
			assert.Equal(t, "0", q.Get("strategy"))
			_, _ = io.WriteString(w, `{"status":"1","info":"OK","infocode":"10000",
				"route":{"paths":[{"distance":"812","duration":"600"},{"distance":"700","duration":"900"}]}}`)
		})

		leg, err := c.Driving(ctx, creds, from, to)
		require.NoError(t, err)
		assert.Equal(t, 600.0, leg.Seconds)
		assert.Equal(t, 812.0, leg.Meters)
	})

	t.Run("no route", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"status":"1","route":{"paths":[]}}`)
		})

		_, err := c.Driving(ctx, creds, from, to)
		assert.ErrorIs(t, err, types.ErrNoMatch)
	})

	t.Run("bad duration", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"status":"1","route":{"paths":[{"distance":"1","duration":"soon"}]}}`)
		})

		_, err := c.Driving(ctx, creds, from, to)
		assert.ErrorIs(t, err, types.ErrMalformedResponse)
	})
}

func TestSign(t *testing.T) {
	q := url.Values{}
	q.Set("key", "abc")
	q.Set("address", "成都")
	assert.Equal(t, Sign(q, "xyz"), Sign(url.Values{"key": {"abc"}, "address": {"成都"}, "sig": {"ignored"}}, "xyz"))
	assert.Len(t, Sign(q, "xyz"), 32)
	assert.NotEqual(t, Sign(q, "xyz"), Sign(q, "other"))
}

func TestParseLngLat(t *testing.T) {
	p, err := ParseLngLat("104.0503,30.6448")
	require.NoError(t, err)
	assert.Equal(t, LngLat{Lng: 104.0503, Lat: 30.6448}, p)

	_, err = ParseLngLat("104.0503")
	assert.Error(t, err)
	_, err = ParseLngLat("a,b")
	assert.Error(t, err)
}
