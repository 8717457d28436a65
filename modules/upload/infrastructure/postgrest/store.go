package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/zcpi-labs/zcpi/modules/upload/domain"
	"github.com/zcpi-labs/zcpi/pkg/remote"
)

const requestIDHeader = "X-Request-ID"

// APIError is the error document PostgREST returns on 4xx/5xx.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("postgrest status=%d code=%s: %s", e.Status, e.Code, e.Message)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

type Store struct {
	endpoint   *url.URL
	key        string
	httpClient *http.Client
}

// New targets {baseURL}/rest/v1/{table} and upserts on the conflict columns.
func New(baseURL, key, table string, conflict []string, httpClient *http.Client) (*Store, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid store url: %q", baseURL)
	}
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("store table is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/rest/v1/" + url.PathEscape(table)
	if len(conflict) > 0 {
		q := u.Query()
		q.Set("on_conflict", strings.Join(conflict, ","))
		u.RawQuery = q.Encode()
	}
	if httpClient == nil {
		httpClient = remote.NewHTTPClient()
	}
	return &Store{endpoint: u, key: strings.TrimSpace(key), httpClient: httpClient}, nil
}

func (s *Store) Name() string {
	return "rest"
}

func (s *Store) Upsert(ctx context.Context, records []domain.Record) error {
	body, err := json.Marshal(records)
	if err != nil {
		return errors.Wrap(err, "json marshal batch")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "http request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")
	req.Header.Set(requestIDHeader, uuid.NewString())
	if s.key != "" {
		req.Header.Set("apikey", s.key)
		req.Header.Set("Authorization", "Bearer "+s.key)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "http do")
	}
	_, err = remote.ReadBody(resp)
	var se *remote.StatusError
	if errors.As(err, &se) {
		apiErr := APIError{Status: se.Status}
		if jsonErr := json.Unmarshal([]byte(se.Body), &apiErr); jsonErr == nil && apiErr.Message != "" {
			return &apiErr
		}
	}
	return err
}
