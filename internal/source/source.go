package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const maxErrorBody = 4 << 10

// Options parameterise the telemetry loader.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Stdin     io.Reader
}

// Loader resolves a telemetry location to a line stream. A location is a
// local path, "-" for stdin, or an http(s) URL.
type Loader struct {
	opts   Options
	client *http.Client
	logger zerolog.Logger
}

// New constructs a loader.
func New(opts Options, logger zerolog.Logger) *Loader {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}

	return &Loader{
		opts:   opts,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "telemetry_source").Logger(),
	}
}

// Open returns a reader for location. Callers must close it.
func (l *Loader) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	location = strings.TrimSpace(location)
	switch {
	case location == "":
		return nil, errors.New("telemetry location is empty")
	case location == "-":
		return io.NopCloser(l.opts.Stdin), nil
	case isRemote(location):
		return l.fetch(ctx, location)
	default:
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("open telemetry file: %w", err)
		}
		return f, nil
	}
}

func (l *Loader) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create telemetry request: %w", err)
	}
	req.Header.Set("Accept", "application/x-ndjson, application/jsonl, text/plain")
	if ua := strings.TrimSpace(l.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "flightdeck/1.0")
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch telemetry: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	l.logger.Debug().Str("url", url).Int("status", resp.StatusCode).Msg("telemetry fetched")
	return resp.Body, nil
}

func isRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func parseHTTPError(status int, payload []byte) error {
	body := strings.TrimSpace(string(payload))
	if body != "" {
		return fmt.Errorf("telemetry source error (%d): %s", status, body)
	}
	return fmt.Errorf("telemetry source error (%d)", status)
}
