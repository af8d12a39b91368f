package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kerbal-mod-manager/logger"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultConcurrency = 4
	defaultMaxRetries  = 3
)

// Target is one download request. URLs are tried in order until one works;
// ETag, when known, is sent as If-None-Match so an unchanged resource comes
// back as NotModified instead of a payload.
type Target struct {
	URLs     []string
	Filename string
	Size     int64
	ETag     string
}

// URL returns the primary URL for display and bookkeeping.
func (t Target) URL() string {
	if len(t.URLs) == 0 {
		return ""
	}
	return t.URLs[0]
}

// Result is the outcome of one target's download. Exactly one of Err,
// NotModified, or Body is meaningful.
type Result struct {
	Target      Target
	Err         error
	NotModified bool
	Body        []byte
	ETag        string
	SHA256      string
}

// ProgressFunc receives per-target byte progress. total is -1 when the
// server did not say.
type ProgressFunc func(target Target, done, total int64)

// NetworkError is a transport failure against a specific URL.
type NetworkError struct {
	URL   string
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// IntegrityError is a SHA256 mismatch on a completed download.
type IntegrityError struct {
	Path string
	Want string
	Got  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("sha256 mismatch for %s: want %s, got %s", e.Path, e.Want, e.Got)
}

// Client downloads targets in parallel with retry and ETag awareness.
// Completion callbacks are serialized onto one goroutine at a time, so
// callers can update shared state without their own locking.
type Client struct {
	HTTPClient  *http.Client
	UserAgent   string
	Concurrency int
	MaxRetries  int
	Progress    ProgressFunc

	log *zap.SugaredLogger
}

// NewClient returns a downloader with the standard timeouts.
func NewClient(userAgent string) *Client {
	return &Client{
		HTTPClient:  &http.Client{Timeout: defaultTimeout},
		UserAgent:   userAgent,
		Concurrency: defaultConcurrency,
		MaxRetries:  defaultMaxRetries,
		log:         logger.Log,
	}
}

// HeadETag issues a HEAD request and returns the ETag header, or "" when the
// server does not send one. file:// URLs have no ETags.
func (c *Client) HeadETag(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &NetworkError{URL: rawURL, Cause: err}
	}
	if u.Scheme == "file" {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", &NetworkError{URL: rawURL, Cause: err}
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", &NetworkError{URL: rawURL, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return "", &NetworkError{URL: rawURL, Cause: fmt.Errorf("HEAD returned status %d", resp.StatusCode)}
	}
	return resp.Header.Get("ETag"), nil
}

// DownloadAndWait fetches every target and blocks until all have completed,
// failed, or the context was cancelled. onComplete runs once per target,
// serialized. The returned error is the first transport failure, if any;
// per-target failures are also delivered on their Result.
func (c *Client) DownloadAndWait(ctx context.Context, targets []Target, onComplete func(Result)) error {
	concurrency := c.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	var completeMu sync.Mutex
	complete := func(res Result) {
		if onComplete == nil {
			return
		}
		completeMu.Lock()
		defer completeMu.Unlock()
		onComplete(res)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, target := range targets {
		g.Go(func() error {
			res := c.fetchTarget(gctx, target)
			complete(res)
			return res.Err
		})
	}
	return g.Wait()
}

// fetchTarget tries each of the target's URLs in order, with retries on
// transient failures.
func (c *Client) fetchTarget(ctx context.Context, target Target) Result {
	var lastErr error
	for _, rawURL := range target.URLs {
		res, err := c.fetchURL(ctx, target, rawURL)
		if err == nil {
			return res
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		c.log.Warnw("Download failed, trying next mirror",
			zap.String("url", rawURL),
			zap.Error(err),
		)
	}
	if lastErr == nil {
		lastErr = &NetworkError{URL: target.URL(), Cause: errors.New("target has no urls")}
	}
	return Result{Target: target, Err: lastErr}
}

func (c *Client) fetchURL(ctx context.Context, target Target, rawURL string) (Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Result{}, &NetworkError{URL: rawURL, Cause: err}
	}
	if u.Scheme == "file" {
		return c.fetchFile(target, u)
	}

	var res Result
	op := func() error {
		r, err := c.fetchHTTPOnce(ctx, target, rawURL)
		if err != nil {
			return err
		}
		res = r
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(), uint64(c.MaxRetries)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return Result{}, err
	}
	return res, nil
}

// fetchFile reads a file:// target directly from disk.
func (c *Client) fetchFile(target Target, u *url.URL) (Result, error) {
	path := u.Path
	if u.Host != "" {
		// file://host/path is not supported; treat host as a path component.
		path = "/" + u.Host + u.Path
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, &NetworkError{URL: u.String(), Cause: err}
	}
	sum := sha256.Sum256(data)
	return Result{
		Target: target,
		Body:   data,
		SHA256: hex.EncodeToString(sum[:]),
	}, nil
}

func (c *Client) fetchHTTPOnce(ctx context.Context, target Target, rawURL string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, backoff.Permanent(&NetworkError{URL: rawURL, Cause: err})
	}
	req.Header.Set("User-Agent", c.UserAgent)
	if target.ETag != "" {
		req.Header.Set("If-None-Match", target.ETag)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, backoff.Permanent(&NetworkError{URL: rawURL, Cause: ctx.Err()})
		}
		return Result{}, &NetworkError{URL: rawURL, Cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return Result{Target: target, NotModified: true, ETag: target.ETag}, nil
	case resp.StatusCode >= 500:
		// Server trouble is worth retrying.
		return Result{}, &NetworkError{URL: rawURL, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Result{}, backoff.Permanent(&NetworkError{URL: rawURL, Cause: fmt.Errorf("status %d", resp.StatusCode)})
	}

	hasher := sha256.New()
	var body []byte
	buf := make([]byte, 32*1024)
	var done int64
	total := resp.ContentLength
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
			body = append(body, buf[:n]...)
			done += int64(n)
			if c.Progress != nil {
				c.Progress(target, done, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return Result{}, &NetworkError{URL: rawURL, Cause: readErr}
		}
	}

	return Result{
		Target: target,
		Body:   body,
		ETag:   resp.Header.Get("ETag"),
		SHA256: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// VerifySHA256 checks a downloaded file against its expected hash. An empty
// expectation passes.
func VerifySHA256(path, want string) error {
	if want == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return err
	}
	got := hex.EncodeToString(hasher.Sum(nil))
	if got != want {
		return &IntegrityError{Path: path, Want: want, Got: got}
	}
	return nil
}

// SaveTo writes a result body to disk and verifies it against the expected
// SHA256 when one is known.
func (r Result) SaveTo(path, wantSHA256 string) error {
	if r.Err != nil {
		return r.Err
	}
	if wantSHA256 != "" && r.SHA256 != wantSHA256 {
		return &IntegrityError{Path: path, Want: wantSHA256, Got: r.SHA256}
	}
	if err := os.WriteFile(path, r.Body, 0644); err != nil {
		return err
	}
	return nil
}
