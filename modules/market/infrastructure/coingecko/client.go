package coingecko

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"github.com/zcpi-labs/zcpi/modules/market/domain"
	"github.com/zcpi-labs/zcpi/pkg/remote"
)

// The public endpoint rejects requests without a browser-like User-Agent.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"

// ErrMissingPrices means the payload decoded but has no usable "prices" list.
var ErrMissingPrices = errors.New("API response missing 'prices' field")

type Request struct {
	VsCurrency string
	// TrailingDays bounds the history when no key is present. With a key
	// the full history ("max") is requested instead.
	TrailingDays int
	Key          string
}

// Days is the value sent as the days query parameter.
func (r Request) Days() string {
	if strings.TrimSpace(r.Key) != "" {
		return "max"
	}
	return strconv.Itoa(r.TrailingDays)
}

type Client struct {
	url        string
	httpClient *http.Client
}

// KeyHeader carries the optional demo API key. It stays out of the URL so
// that it never shows up in request errors.
const KeyHeader = "x-cg-demo-api-key"

func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = remote.NewHTTPClient()
	}
	return &Client{url: url, httpClient: httpClient}
}

// Fetch requests the daily market chart and returns the body untouched.
func (c *Client) Fetch(ctx context.Context, req Request) ([]byte, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, errors.Wrapf(err, "parse coingecko url %q", c.url)
	}
	q := u.Query()
	q.Set("vs_currency", req.VsCurrency)
	q.Set("days", req.Days())
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build coingecko request")
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "application/json")
	if key := strings.TrimSpace(req.Key); key != "" {
		httpReq.Header.Set(KeyHeader, key)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "coingecko request")
	}
	return remote.ReadBody(resp)
}

// DecodePrices extracts the [epoch-ms, price] pairs. Pairs with a missing
// timestamp or price are skipped. A body that is not a JSON object, or one
// without a "prices" list, yields ErrMissingPrices.
func DecodePrices(raw []byte) ([]domain.DailyPrice, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errors.Wrap(ErrMissingPrices, err.Error())
	}
	field, ok := payload["prices"]
	if !ok {
		return nil, ErrMissingPrices
	}
	var pairs [][]*float64
	if err := json.Unmarshal(field, &pairs); err != nil {
		return nil, errors.Wrap(ErrMissingPrices, err.Error())
	}

	out := make([]domain.DailyPrice, 0, len(pairs))
	for _, p := range pairs {
		if len(p) < 2 || p[0] == nil || p[1] == nil {
			continue
		}
		out = append(out, domain.FromEpochMillis(int64(*p[0]), *p[1]))
	}
	return out, nil
}
