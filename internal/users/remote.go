package users

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PabloPavan/userdesk/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

const (
	DefaultRemoteURL     = "https://gorest.co.in/public/v2/users"
	DefaultRemoteTimeout = 10 * time.Second

	maxRemoteBody = 8 << 20
)

// Source fetches the full remote collection.
type Source interface {
	FetchAll(ctx context.Context) ([]RemoteUser, error)
}

type HTTPSource struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	if url == "" {
		url = DefaultRemoteURL
	}
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &HTTPSource{
		URL:     url,
		Client:  &http.Client{},
		Timeout: timeout,
	}
}

func (s *HTTPSource) FetchAll(ctx context.Context) (list []RemoteUser, err error) {
	ctx, span := telemetry.StartSpan(ctx, "users.remote.fetch",
		attribute.String("http.url", s.URL),
	)
	defer func() {
		span.SetAttributes(attribute.Int("users.count", len(list)))
		telemetry.EndSpan(span, err)
	}()

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteFetch, err)
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteFetch, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxRemoteBody))
		return nil, fmt.Errorf("%w: unexpected status %d", ErrRemoteFetch, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRemoteBody)).Decode(&list); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrRemoteFetch, err)
	}
	if list == nil {
		list = []RemoteUser{}
	}
	return list, nil
}
