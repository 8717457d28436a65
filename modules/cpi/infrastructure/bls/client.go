package bls

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"github.com/zcpi-labs/zcpi/modules/cpi/domain"
	"github.com/zcpi-labs/zcpi/pkg/remote"
)

const StatusSucceeded = "REQUEST_SUCCEEDED"

type Request struct {
	SeriesIDs []string
	StartYear int
	EndYear   int
	// Optional registration key; raises the daily query limit.
	Key string
}

type requestBody struct {
	SeriesID        []string `json:"seriesid"`
	StartYear       string   `json:"startyear"`
	EndYear         string   `json:"endyear"`
	RegistrationKey string   `json:"registrationkey,omitempty"`
}

type Response struct {
	Status  string   `json:"status"`
	Message []string `json:"message"`
	Results struct {
		Series []Series `json:"series"`
	} `json:"Results"`
}

type Series struct {
	SeriesID string      `json:"seriesID"`
	Data     []DataPoint `json:"data"`
}

type DataPoint struct {
	Year       string `json:"year"`
	Period     string `json:"period"`
	PeriodName string `json:"periodName"`
	Value      string `json:"value"`
}

type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = remote.NewHTTPClient()
	}
	return &Client{url: url, httpClient: httpClient}
}

// Fetch posts the series query and returns the response body untouched.
// Non-2xx responses come back as *remote.StatusError.
func (c *Client) Fetch(ctx context.Context, req Request) ([]byte, error) {
	body := requestBody{
		SeriesID:        req.SeriesIDs,
		StartYear:       strconv.Itoa(req.StartYear),
		EndYear:         strconv.Itoa(req.EndYear),
		RegistrationKey: strings.TrimSpace(req.Key),
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal bls request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrap(err, "build bls request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "bls request")
	}
	return remote.ReadBody(resp)
}

func Decode(raw []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrap(err, "decode bls response")
	}
	return &resp, nil
}

// Flatten turns the nested series/data structure into records. Data points
// whose period is not a month or whose value is not numeric are dropped;
// dropped reports how many.
func (r *Response) Flatten() (records []domain.Record, dropped int) {
	for _, s := range r.Results.Series {
		for _, d := range s.Data {
			date, err := domain.ParsePeriod(d.Year, d.PeriodName)
			if err != nil {
				dropped++
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(d.Value), 64)
			if err != nil {
				dropped++
				continue
			}
			records = append(records, domain.Record{
				SeriesID:   s.SeriesID,
				Year:       d.Year,
				PeriodName: d.PeriodName,
				Value:      v,
				Date:       date,
			})
		}
	}
	return records, dropped
}
