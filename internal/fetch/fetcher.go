// Package fetch is the resilient HTTP layer shared by every provider
// adapter: bounded retries with status-aware backoff, explicit redirect
// handling, transparent content decoding, disk-cache read-through with
// stale-on-failure fallback, and per-API rate limiting.
package fetch

import (
	"bufio"
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"

	"substream/config"
	"substream/internal/diskcache"
)

// NoCache disables caching for a request.
const NoCache = -1 * time.Minute

// Request describes one HTTP call. It is an immutable value owned by the
// calling adapter.
type Request struct {
	Method      string // GET when empty
	URL         string
	Referer     string
	Form        url.Values        // POST form body, optional
	Headers     map[string]string // extra headers, optional
	CacheKey    string            // override; defaults to URL+form
	CacheRegion string            // empty disables caching
	CacheTTL    time.Duration     // NoCache (negative) disables caching
}

// Response is the outcome of a fetch. Body is owned by the caller and must
// be closed.
type Response struct {
	Body        io.ReadCloser
	Header      http.Header
	ContentType string
	Filename    string // from Content-Disposition, may be empty
	FromCache   bool
}

// cacheMeta is the metadata record stored next to cached payloads.
type cacheMeta struct {
	ContentType string `json:"contentType,omitempty"`
	Filename    string `json:"filename,omitempty"`
}

// Client issues requests on behalf of provider adapters.
type Client struct {
	httpc        *http.Client
	cache        *diskcache.Cache
	maxRetries   int
	maxRedirects int
	userAgent    string
	log          *logrus.Entry
}

// New builds a client from settings. cache may be nil to disable caching.
func New(cfg config.FetchSettings, cache *diskcache.Cache) *Client {
	return &Client{
		httpc: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
			// Redirects are classified and followed by hand in fetch().
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		cache:        cache,
		maxRetries:   cfg.MaxRetries,
		maxRedirects: cfg.MaxRedirects,
		userAgent:    cfg.UserAgent,
		log:          logrus.WithField("component", "fetch"),
	}
}

// Send resolves the request against the cache, fetching live on a miss or
// expiry. An expired entry is served anyway when the live fetch fails for
// any reason; that path is degraded service, not an error.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	key := req.CacheKey
	if key == "" {
		key = defaultCacheKey(req)
	}
	useCache := c.cache != nil && req.CacheRegion != "" && req.CacheTTL >= 0

	var stale *diskcache.Entry
	if useCache {
		entry, state := c.cache.Get(req.CacheRegion, key, req.CacheTTL)
		switch state {
		case diskcache.Found:
			return cachedResponse(entry), nil
		case diskcache.Expired:
			stale = entry
		}
	}

	resp, payload, err := c.fetch(ctx, req)
	if err != nil {
		if stale != nil {
			c.log.WithError(err).WithFields(logrus.Fields{
				"url": req.URL,
				"age": stale.Age().Round(time.Second),
			}).Warn("live fetch failed, serving stale cache entry")
			return cachedResponse(stale), nil
		}
		return nil, err
	}

	if useCache {
		meta, _ := json.Marshal(cacheMeta{ContentType: resp.ContentType, Filename: resp.Filename})
		if perr := c.cache.Put(req.CacheRegion, key, payload, string(meta)); perr != nil {
			c.log.WithError(perr).WithField("url", req.URL).Warn("cache write failed")
		}
	}
	return resp, nil
}

// SendWithLimiter is Send for partner JSON APIs: it waits on the limiter
// before each call, feeds response headers back into it, and on a 429
// retries the same logical call after the endpoint-indicated delay. This is
// distinct from the generic retry loop, whose wait times are fixed guesses.
func (c *Client) SendWithLimiter(ctx context.Context, req Request, lim *APILimiter) (*Response, error) {
	const apiAttempts = 3
	for attempt := 1; ; attempt++ {
		if err := lim.Acquire(ctx); err != nil {
			return nil, err
		}
		resp, err := c.Send(ctx, req)
		if err == nil {
			if resp.Header != nil {
				lim.UpdateFromHeaders(resp.Header)
			}
			return resp, nil
		}

		var he *HTTPError
		if errors.As(err, &he) && he.Status == http.StatusTooManyRequests && attempt < apiAttempts {
			wait := he.RetryAfter
			if wait <= 0 {
				wait = slidingWindow
			}
			lim.Update(0, int(wait/time.Second)+1)
			c.log.WithFields(logrus.Fields{
				"url":     req.URL,
				"attempt": attempt,
				"wait":    wait,
			}).Warn("api rate limited, retrying after indicated delay")
			if serr := sleepCtx(ctx, wait); serr != nil {
				return nil, serr
			}
			continue
		}
		return nil, err
	}
}

// fetch follows redirects by hand. Each hop gets a fresh retry budget; the
// redirect budget is shared across hops.
func (c *Client) fetch(ctx context.Context, req Request) (*Response, []byte, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	target := req.URL
	form := req.Form

	for hop := 0; hop <= c.maxRedirects; hop++ {
		resp, payload, redirect, err := c.attempt(ctx, method, target, form, req)
		if err != nil {
			return nil, nil, err
		}
		if redirect == nil {
			return resp, payload, nil
		}
		if redirect.status == http.StatusSeeOther {
			method = http.MethodGet
			form = nil
		}
		target = redirect.location
	}
	return nil, nil, fmt.Errorf("fetch %s: too many redirects (max %d)", req.URL, c.maxRedirects)
}

type redirectHop struct {
	status   int
	location string
}

// attempt performs one logical request with the retry loop around it.
func (c *Client) attempt(ctx context.Context, method, target string, form url.Values, req Request) (*Response, []byte, *redirectHop, error) {
	var (
		resp     *Response
		payload  []byte
		redirect *redirectHop
	)

	err := retry.Do(
		func() error {
			var tryErr error
			resp, payload, redirect, tryErr = c.try(ctx, method, target, form, req)
			return tryErr
		},
		retry.Attempts(uint(c.maxRetries)+1),
		retry.RetryIf(IsRetriable),
		retry.DelayType(backoffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.WithFields(logrus.Fields{
				"url":     target,
				"attempt": n + 1,
				"error":   err,
			}).Warn("retrying fetch")
		}),
	)
	if err != nil {
		return nil, nil, nil, err
	}
	return resp, payload, redirect, nil
}

// try is a single wire round trip.
func (c *Client) try(ctx context.Context, method, target string, form url.Values, req Request) (*Response, []byte, *redirectHop, error) {
	var body io.Reader
	if len(form) > 0 {
		body = strings.NewReader(form.Encode())
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build request %s: %w", target, err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	if req.Referer != "" {
		httpReq.Header.Set("Referer", req.Referer)
	}
	if len(form) > 0 {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	res, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, nil, nil, &NetworkError{Err: err}
	}
	defer res.Body.Close()

	if loc, ok := redirectLocation(res); ok {
		io.Copy(io.Discard, res.Body)
		return nil, nil, &redirectHop{status: res.StatusCode, location: loc}, nil
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		io.Copy(io.Discard, res.Body)
		return nil, nil, nil, &HTTPError{Status: res.StatusCode, RetryAfter: retryAfter(res.Header)}
	}

	reader, err := decodeBody(res.Header.Get("Content-Encoding"), res.Body)
	if err != nil {
		return nil, nil, nil, err
	}
	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, nil, &NetworkError{Err: err}
	}

	resp := &Response{
		Body:        io.NopCloser(bytes.NewReader(payload)),
		Header:      res.Header.Clone(),
		ContentType: res.Header.Get("Content-Type"),
		Filename:    dispositionFilename(res.Header.Get("Content-Disposition")),
	}
	return resp, payload, nil, nil
}

// Only these 3xx codes are followed; anything else 3xx is a plain error.
func redirectLocation(res *http.Response) (string, bool) {
	switch res.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
	default:
		return "", false
	}
	loc := res.Header.Get("Location")
	if loc == "" {
		return "", false
	}
	if u, err := res.Request.URL.Parse(loc); err == nil {
		return u.String(), true
	}
	return loc, true
}

func retryAfter(h http.Header) time.Duration {
	if secs, err := strconv.Atoi(h.Get("Retry-After")); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// backoffDelay spaces the generic retries: attempt * random(600,1000)ms,
// except a 429 which waits attempt * random(4000,5000)ms or the
// server-supplied reset hint.
func backoffDelay(n uint, err error, _ *retry.Config) time.Duration {
	attempt := time.Duration(n + 1)
	var he *HTTPError
	if errors.As(err, &he) && he.Status == http.StatusTooManyRequests {
		if he.RetryAfter > 0 {
			return he.RetryAfter
		}
		return attempt * randMillis(4000, 5000)
	}
	return attempt * randMillis(600, 1000)
}

func randMillis(lo, hi int) time.Duration {
	return time.Duration(lo+rand.Intn(hi-lo)) * time.Millisecond
}

func decodeBody(encoding string, r io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return r, nil
	case "gzip":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, &DecodingError{Encoding: "gzip", Err: err}
		}
		return zr, nil
	case "deflate":
		// Servers send either zlib-wrapped or raw deflate; sniff the header.
		br := bufio.NewReader(r)
		if head, err := br.Peek(2); err == nil && head[0] == 0x78 {
			zr, zerr := zlib.NewReader(br)
			if zerr == nil {
				return zr, nil
			}
		}
		return flate.NewReader(br), nil
	case "br":
		return brotli.NewReader(r), nil
	default:
		return nil, &DecodingError{Encoding: encoding, Err: errors.New("unsupported")}
	}
}

func dispositionFilename(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func defaultCacheKey(req Request) string {
	if len(req.Form) == 0 {
		return req.URL
	}
	return req.URL + "|" + req.Form.Encode()
}

func cachedResponse(entry *diskcache.Entry) *Response {
	var meta cacheMeta
	_ = json.Unmarshal([]byte(entry.Meta), &meta)
	return &Response{
		Body:        io.NopCloser(bytes.NewReader(entry.Data)),
		ContentType: meta.ContentType,
		Filename:    meta.Filename,
		FromCache:   true,
	}
}
