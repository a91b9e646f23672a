package abs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/patrickmn/go-cache"

	"github.com/lox/ausdex/internal/httputil"
	"github.com/lox/ausdex/internal/metrics"
	"github.com/lox/ausdex/internal/models"
)

var (
	ErrNoRelease  = errors.New("release not available")
	ErrEmptyFile  = errors.New("downloaded file is empty")
	ErrBadRequest = errors.New("unexpected response")
)

// earliestRelease bounds the walk back through quarters.
var earliestRelease = time.Date(1948, time.January, 1, 0, 0, 0, 0, time.UTC)

// missingTTL is how long an unpublished release is remembered before the
// site is asked again.
const missingTTL = 6 * time.Hour

// Archiver stores a copy of each downloaded payload.
type Archiver interface {
	ArchiveSourceFile(ctx context.Context, f models.SourceFile, payload []byte) error
}

// Client downloads ABS releases into a local file cache.
type Client struct {
	http       *http.Client
	baseURL    string
	files      *FileCache
	missing    *cache.Cache
	archive    Archiver
	logger     *log.Logger
	now        func() time.Time
	maxElapsed time.Duration
}

type ClientOption func(*Client)

func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

func WithArchiver(a Archiver) ClientOption {
	return func(c *Client) { c.archive = a }
}

func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithClock sets the time DownloadByDate starts from when no date is given.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// WithMaxElapsed bounds the total time spent retrying one download.
func WithMaxElapsed(d time.Duration) ClientOption {
	return func(c *Client) { c.maxElapsed = d }
}

func NewClient(cacheDir string, opts ...ClientOption) *Client {
	c := &Client{
		http:       httputil.NewClient(),
		baseURL:    DefaultBaseURL,
		files:      NewFileCache(cacheDir),
		missing:    cache.New(missingTTL, missingTTL),
		logger:     log.Default(),
		now:        time.Now,
		maxElapsed: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Cache() *FileCache {
	return c.files
}

// Download returns the local path of rel, fetching it unless a non-empty
// copy is cached. force always fetches.
func (c *Client) Download(ctx context.Context, rel Release, force bool) (string, error) {
	name := rel.FileName()
	if !force {
		if c.files.Has(name) {
			return c.files.Path(name), nil
		}
		if _, found := c.missing.Get(name); found {
			return "", fmt.Errorf("%w: %s", ErrNoRelease, rel)
		}
	}

	url := rel.URL(c.baseURL)
	c.logger.Printf("abs: downloading %s", url)
	data, err := c.fetch(ctx, rel.ID, url)
	if err != nil {
		if errors.Is(err, ErrNoRelease) {
			c.missing.SetDefault(name, struct{}{})
		}
		return "", fmt.Errorf("download %s: %w", rel, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptyFile, url)
	}

	path, err := c.files.Set(name, data)
	if err != nil {
		return "", err
	}

	if c.archive != nil {
		sum := sha256.Sum256(data)
		f := models.SourceFile{
			FetchedAt:   time.Now().UTC(),
			Source:      "abs",
			Name:        name,
			URL:         url,
			SizeBytes:   int64(len(data)),
			PayloadHash: hex.EncodeToString(sum[:]),
		}
		if err := c.archive.ArchiveSourceFile(ctx, f, data); err != nil {
			c.logger.Printf("abs: archive %s: %v", name, err)
		}
	}
	return path, nil
}

func (c *Client) fetch(ctx context.Context, fileID, url string) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.ABSDownloadLatency.WithLabelValues(fileID).Observe(time.Since(start).Seconds())
	}()

	var body []byte
	operation := func() error {
		req, err := httputil.NewGetRequest(ctx, url)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			metrics.ABSDownloadsTotal.WithLabelValues(fileID, "error").Inc()
			return backoff.Permanent(fmt.Errorf("fetch: %w", err))
		}
		defer resp.Body.Close()

		status := strconv.Itoa(resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			metrics.ABSDownloadsTotal.WithLabelValues(fileID, status).Inc()
			return fmt.Errorf("fetch: status %d", resp.StatusCode)
		}
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			metrics.ABSDownloadsTotal.WithLabelValues(fileID, status).Inc()
			return backoff.Permanent(fmt.Errorf("%w: status %d", ErrNoRelease, resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			metrics.ABSDownloadsTotal.WithLabelValues(fileID, status).Inc()
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(fmt.Errorf("%w: status %d: %s", ErrBadRequest, resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			metrics.ABSDownloadsTotal.WithLabelValues(fileID, "error").Inc()
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		metrics.ABSDownloadsTotal.WithLabelValues(fileID, status).Inc()
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

// DownloadByDate fetches the latest release of id published for a quarter
// before date, walking back one quarter at a time until a release is found.
// A zero date means now.
func (c *Client) DownloadByDate(ctx context.Context, id string, date time.Time, force bool) (Release, string, error) {
	if date.IsZero() {
		date = c.now()
	}
	for date.After(earliestRelease) {
		q, year := QuarterBefore(date)
		rel := Release{ID: id, Quarter: q, Year: year}

		path, err := c.Download(ctx, rel, force)
		if err == nil {
			return rel, path, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Release{}, "", ctxErr
		}
		c.logger.Printf("WARNING: CPI data for Quarter %s %d not yet available.", q.Title(), year)

		date = date.AddDate(0, 0, -89)
	}
	return Release{}, "", fmt.Errorf("%w: no %s release since %s", ErrNoRelease, id, earliestRelease.Format("2006"))
}

// LatestCPI returns the newest available CPI workbook.
func (c *Client) LatestCPI(ctx context.Context, force bool) (Release, string, error) {
	return c.DownloadByDate(ctx, CPIFileID, time.Time{}, force)
}

// FetchCPI downloads the CPI workbook in force at date (zero for the
// latest) and parses its observations.
func (c *Client) FetchCPI(ctx context.Context, date time.Time, force bool) (Release, []models.CPIObservation, error) {
	rel, path, err := c.DownloadByDate(ctx, CPIFileID, date, force)
	if err != nil {
		return Release{}, nil, err
	}
	obs, err := ParseCPIWorkbook(path)
	if err != nil {
		return rel, nil, fmt.Errorf("parse %s: %w", rel, err)
	}
	return rel, obs, nil
}
