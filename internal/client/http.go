package client

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// doRequest executes one upstream call and returns the raw body. Non-200
// responses become *entity.StatusError so callers can inspect the status
// code (429 detection) and the body text (denylist signals).
func doRequest(ctx context.Context, client *fasthttp.Client, api, method, url string, body []byte, timeout time.Duration) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if body != nil {
		req.SetBody(body)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	start := time.Now()
	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = client.DoDeadline(req, resp, deadline)
	} else {
		err = client.DoTimeout(req, resp, timeout)
	}
	metrics.UpstreamRequestDuration.WithLabelValues(api).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to execute request to %s: %w", url, err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, &entity.StatusError{
			StatusCode: resp.StatusCode(),
			URL:        url,
			Body:       string(resp.Body()),
		}
	}

	// resp.Body() is reused after release; copy out.
	raw := make([]byte, len(resp.Body()))
	copy(raw, resp.Body())
	return raw, nil
}
