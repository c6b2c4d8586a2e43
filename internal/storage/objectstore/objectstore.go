// Package objectstore keeps datasets in an HTTP object store as one CSV object
// per identity. Objects live at {base}/{identity}.csv and are read with GET and
// replaced with PUT.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"protodash/internal/metrics"
	"protodash/internal/sheet"
	"protodash/internal/storage"
)

const (
	backendName     = "objectstore"
	defaultMaxTries = 4
	maxErrorBody    = 512
)

type Store struct {
	base     string
	token    string
	client   *http.Client
	maxTries uint
	newBO    func() backoff.BackOff
	logger   *zap.Logger
}

type Option func(*Store)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.client = c }
}

func WithToken(token string) Option {
	return func(s *Store) { s.token = token }
}

func WithMaxTries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxTries = uint(n)
		}
	}
}

// WithBackOff sets the policy factory; a fresh policy is built per request.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(s *Store) { s.newBO = f }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(base string, opts ...Option) (*Store, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("object store url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("object store url %q: scheme must be http or https", base)
	}
	s := &Store{
		base:     u.String(),
		client:   &http.Client{Timeout: 30 * time.Second},
		maxTries: defaultMaxTries,
		newBO: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) objectURL(user string) string {
	return s.base + "/" + url.PathEscape(user) + ".csv"
}

// statusError is a non-2xx reply from the store.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

func (s *Store) Load(ctx context.Context, user string) (metrics.Dataset, error) {
	body, err := s.do(ctx, http.MethodGet, user, nil)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return metrics.Dataset{}, nil
		}
		return nil, storage.Unavailable(backendName, "load", user, err)
	}
	rows, err := sheet.ReadCSV(bytes.NewReader(body))
	if err != nil {
		return nil, storage.Unavailable(backendName, "load", user, err)
	}
	return metrics.Normalize(rows), nil
}

func (s *Store) Save(ctx context.Context, user string, ds metrics.Dataset) error {
	var buf bytes.Buffer
	if err := sheet.WriteCSV(&buf, ds); err != nil {
		return storage.Unavailable(backendName, "save", user, err)
	}
	if _, err := s.do(ctx, http.MethodPut, user, buf.Bytes()); err != nil {
		return storage.Unavailable(backendName, "save", user, err)
	}
	return nil
}

func (s *Store) do(ctx context.Context, method, user string, payload []byte) ([]byte, error) {
	target := s.objectURL(user)

	notify := func(err error, wait time.Duration) {
		s.logger.Warn("object store request failed, retrying",
			zap.String("method", method),
			zap.String("user", user),
			zap.Duration("backoff", wait),
			zap.Error(err))
	}

	operation := func() ([]byte, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if s.token != "" {
			req.Header.Set("Authorization", "Bearer "+s.token)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "text/csv; charset=utf-8")
		}

		resp, err := s.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}

		se := &statusError{Code: resp.StatusCode, Body: truncate(strings.TrimSpace(string(data)), maxErrorBody)}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, se
		}
		return nil, backoff.Permanent(se)
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(s.newBO()),
		backoff.WithMaxTries(s.maxTries),
		backoff.WithNotify(notify))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
