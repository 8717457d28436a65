package coingecko

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zcpi-labs/zcpi/pkg/remote"
)

func TestClient_Fetch_QueryAndHeaders(t *testing.T) {
	cases := []struct {
		name    string
		req     Request
		days    string
		withKey bool
	}{
		{name: "anonymous", req: Request{VsCurrency: "usd", TrailingDays: 365}, days: "365"},
		{name: "keyed", req: Request{VsCurrency: "usd", TrailingDays: 365, Key: "demo"}, days: "max", withKey: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, http.MethodGet, r.Method)
				require.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
				require.Equal(t, tc.days, r.URL.Query().Get("days"))
				require.False(t, r.URL.Query().Has("x_cg_demo_api_key"))
				if tc.withKey {
					require.Equal(t, "demo", r.Header.Get(KeyHeader))
				} else {
					require.Empty(t, r.Header.Get(KeyHeader))
				}
				require.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
				_, _ = w.Write([]byte(`{"prices":[]}`))
			}))
			defer srv.Close()

			raw, err := NewClient(srv.URL, srv.Client()).Fetch(context.Background(), tc.req)
			require.NoError(t, err)
			require.JSONEq(t, `{"prices":[]}`, string(raw))
		})
	}
}

func TestClient_Fetch_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).Fetch(context.Background(), Request{VsCurrency: "usd", TrailingDays: 1})
	var se *remote.StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusTooManyRequests, se.Status)
}

func TestClient_Fetch_ErrorsOmitKey(t *testing.T) {
	const key = "SECRET-KEY-123"
	req := Request{VsCurrency: "usd", TrailingDays: 1, Key: key}

	limited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer limited.Close()

	_, err := NewClient(limited.URL, limited.Client()).Fetch(context.Background(), req)
	var se *remote.StatusError
	require.True(t, errors.As(err, &se))
	require.NotContains(t, err.Error(), key)

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	_, err = NewClient(closedURL, nil).Fetch(context.Background(), req)
	require.Error(t, err)
	require.NotContains(t, err.Error(), key)
}

func TestDecodePrices(t *testing.T) {
	prices, err := DecodePrices([]byte(`{"prices":[[1577836800000,40.5],[1577923200000,null],[1580601600000,60]],"total_volumes":[]}`))
	require.NoError(t, err)
	require.Len(t, prices, 2)
	require.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), prices[0].Date)
	require.Equal(t, 40.5, prices[0].Price)
	require.Equal(t, time.Date(2020, 2, 2, 0, 0, 0, 0, time.UTC), prices[1].Date)
}

func TestDecodePrices_Malformed(t *testing.T) {
	for _, raw := range []string{
		`{"error":"coin not found"}`,
		`{"prices":"n/a"}`,
		`[1,2,3]`,
		`not json`,
	} {
		_, err := DecodePrices([]byte(raw))
		require.ErrorIs(t, err, ErrMissingPrices, raw)
	}
}
