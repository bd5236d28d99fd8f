package httpclient

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// BaseResponse is the transport-level view of an upstream reply. The decoded
// payload goes to the result argument of the request methods.
type BaseResponse struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

func (r *BaseResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// RetryAfter reads a Retry-After header given in seconds. It returns zero
// when the header is absent or not a number.
func (r *BaseResponse) RetryAfter() time.Duration {
	if r.Headers == nil {
		return 0
	}
	secs, err := strconv.Atoi(r.Headers.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// HTTPClient is the upstream surface used by the Yahoo chart and quant
// worker repositories.
type HTTPClient interface {
	Get(ctx context.Context, endpoint string, queryParams map[string]string, headers map[string]string, result interface{}) (*BaseResponse, error)
	Post(ctx context.Context, endpoint string, body interface{}, headers map[string]string, result interface{}) (*BaseResponse, error)
}
