package client

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"finsent-backend/pkg/api"

	"github.com/go-resty/resty/v2"
)

// Error is returned for any non 2xx response from the service.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Detail)
}

type Client struct {
	client *resty.Client
}

func New(baseUrl string) *Client {
	return &Client{
		client: resty.New().
			SetBaseURL(baseUrl).
			SetTimeout(30 * time.Second).
			SetHeader("Accept", "application/json"),
	}
}

// Analyze returns the single top sentiment for text.
func (c *Client) Analyze(ctx context.Context, text string) (api.SentimentScore, error) {
	var res api.AnalyzeResponse
	if err := c.post(ctx, "/analyze", api.AnalyzeRequest{Text: text}, &res); err != nil {
		return api.SentimentScore{}, err
	}
	if len(res.Sentiment) != 1 {
		return api.SentimentScore{}, fmt.Errorf("expected 1 sentiment in response, got %d", len(res.Sentiment))
	}
	return res.Sentiment[0], nil
}

func (c *Client) AnalyzeDetails(ctx context.Context, req api.AnalyzeRequest) (api.AnalyzeDetailsResponse, error) {
	var res api.AnalyzeDetailsResponse
	err := c.post(ctx, "/analyze/details", req, &res)
	return res, err
}

func (c *Client) ModelInfo(ctx context.Context) (api.ModelInfo, error) {
	var res api.ModelInfo
	err := c.get(ctx, "/model", nil, &res)
	return res, err
}

func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil, nil)
}

func (c *Client) ListAnalyses(ctx context.Context, params api.ListAnalysesParams) ([]api.Analysis, error) {
	query := map[string]string{}
	if params.Label != "" {
		query["label"] = params.Label
	}
	if params.Symbol != "" {
		query["symbol"] = params.Symbol
	}
	if !params.Since.IsZero() {
		query["since"] = params.Since.Format(time.RFC3339)
	}
	if params.Limit > 0 {
		query["limit"] = strconv.Itoa(params.Limit)
	}

	var res []api.Analysis
	err := c.get(ctx, "/analyses", query, &res)
	return res, err
}

func (c *Client) SentimentTrend(ctx context.Context, params api.TrendParams) ([]api.TrendPoint, error) {
	query := map[string]string{"symbol": params.Symbol}
	if params.Days > 0 {
		query["days"] = strconv.Itoa(params.Days)
	}

	var res []api.TrendPoint
	err := c.get(ctx, "/analyses/trend", query, &res)
	return res, err
}

func (c *Client) post(ctx context.Context, endpoint string, body, result any) error {
	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(result).
		SetError(&api.ErrorResponse{}).
		Post(endpoint)
	return checkResponse(res, err, endpoint)
}

func (c *Client) get(ctx context.Context, endpoint string, query map[string]string, result any) error {
	req := c.client.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetError(&api.ErrorResponse{})
	if result != nil {
		req.SetResult(result)
	}
	res, err := req.Get(endpoint)
	return checkResponse(res, err, endpoint)
}

func checkResponse(res *resty.Response, err error, endpoint string) error {
	if err != nil {
		return fmt.Errorf("error calling %s: %w", endpoint, err)
	}
	if !res.IsSuccess() {
		detail := res.String()
		if apiErr, ok := res.Error().(*api.ErrorResponse); ok && apiErr.Detail != "" {
			detail = apiErr.Detail
		}
		return &Error{StatusCode: res.StatusCode(), Detail: detail}
	}
	return nil
}
