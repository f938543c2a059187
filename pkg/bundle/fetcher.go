package bundle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skillfetch/pkg/logger"
	"github.com/jingkaihe/skillfetch/pkg/telemetry"
)

const (
	attemptTimeout = 30 * time.Second
	baseRetryDelay = 1 * time.Second
	maxRetryDelay  = 30 * time.Second
)

// ErrNotFound indicates the skill no longer exists upstream. Not retryable.
var ErrNotFound = errors.New("skill bundle not found")

// rootFileCandidates are tried in order for the bundle root; upstream repos
// disagree on the casing.
var rootFileCandidates = []string{"skill.md", SkillFileName}

// Fetcher retrieves skill bundles over HTTP with bounded retry. It performs
// no filesystem I/O.
type Fetcher struct {
	httpClient *http.Client
	authToken  string
	maxRetries int
	retryDelay time.Duration
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.httpClient = client
	}
}

// WithAuthToken sets a bearer token for raw content requests, raising the
// unauthenticated rate limit.
func WithAuthToken(token string) Option {
	return func(f *Fetcher) {
		f.authToken = token
	}
}

// WithMaxRetries sets how many additional attempts follow a transient failure
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.maxRetries = n
		}
	}
}

// WithRetryDelay sets the base backoff delay between attempts
func WithRetryDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.retryDelay = d
	}
}

// NewFetcher creates a bundle fetcher. Defaults: 3 retries, 1s backoff base,
// 30s per-attempt timeout.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: attemptTimeout},
		maxRetries: 3,
		retryDelay: baseRetryDelay,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the complete bundle for ref. Transient failures (network
// errors, timeouts, 5xx, 429) are retried with backoff up to the configured
// budget; ErrNotFound and ErrMalformed fail immediately. Either the whole
// bundle is returned or none of it.
func (f *Fetcher) Fetch(ctx context.Context, ref Ref) ([]FileBlob, error) {
	var blobs []FileBlob

	err := retry.Do(
		func() error {
			var err error
			blobs, err = f.fetchOnce(ctx, ref)
			return err
		},
		retry.RetryIf(isTransient),
		retry.Attempts(uint(f.maxRetries)+1),
		retry.Delay(f.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxDelay(maxRetryDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			telemetry.AddEvent(ctx, "bundle.fetch.retry",
				attribute.Int("attempt", int(n)+1),
				attribute.String("error", err.Error()))
			logger.G(ctx).WithError(err).
				WithField("attempt", n+1).
				WithField("max_attempts", f.maxRetries+1).
				WithField("bundle", ref.RawBaseURL).
				Warn("retrying bundle fetch")
		}),
	)
	if err != nil {
		return nil, err
	}
	return blobs, nil
}

// fetchOnce downloads every file of the bundle once. Any failure discards
// the attempt entirely.
func (f *Fetcher) fetchOnce(ctx context.Context, ref Ref) ([]FileBlob, error) {
	root, err := f.fetchRootFile(ctx, ref)
	if err != nil {
		return nil, err
	}

	blobs := []FileBlob{root}
	for _, rel := range ref.Files {
		content, err := f.get(ctx, ref.RawBaseURL+"/"+rel)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch bundle file %s", rel)
		}
		blobs = append(blobs, FileBlob{Path: rel, Content: content})
	}
	return blobs, nil
}

// fetchRootFile tries the root file name variants and validates frontmatter.
// The blob is normalized to SKILL.md regardless of the upstream casing.
func (f *Fetcher) fetchRootFile(ctx context.Context, ref Ref) (FileBlob, error) {
	var lastErr error
	for _, name := range rootFileCandidates {
		content, err := f.get(ctx, ref.RawBaseURL+"/"+name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				lastErr = err
				continue
			}
			return FileBlob{}, err
		}

		// GitHub serves an HTML error page for some missing paths
		if strings.HasPrefix(strings.TrimSpace(string(content)), "<!DOCTYPE html>") {
			lastErr = ErrNotFound
			continue
		}

		if _, err := ParseMetadata(content); err != nil {
			return FileBlob{}, err
		}
		return FileBlob{Path: SkillFileName, Content: content}, nil
	}

	if lastErr == nil {
		lastErr = ErrNotFound
	}
	return FileBlob{}, lastErr
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	if f.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.authToken)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to read the body
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, &statusError{status: resp.StatusCode, url: url}
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	return content, nil
}

type statusError struct {
	status int
	url    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.status, e.url)
}

// isTransient reports whether an attempt error is worth retrying. Missing and
// malformed bundles are permanent; 5xx and 429 responses, network errors, and
// timeouts are transient.
func isTransient(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrMalformed) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= 500 || se.status == http.StatusTooManyRequests
	}
	return true
}
