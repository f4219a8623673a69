package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Stdin is the input URL that selects standard input.
const Stdin = "-"

var stdin io.Reader = os.Stdin

// Open returns a reader for a local path, "file://" URL, "-" or an
// http(s) URL. The caller closes it.
func Open(ctx context.Context, cfg Config) (io.ReadCloser, error) {
	u := cfg.InputURL
	switch {
	case u == "":
		return nil, fmt.Errorf("source: input_url is empty")
	case u == Stdin:
		return io.NopCloser(stdin), nil
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
		return openHTTP(ctx, u, cfg.HTTPTimeout)
	default:
		f, err := os.Open(strings.TrimPrefix(u, "file://"))
		if err != nil {
			return nil, fmt.Errorf("source: open input: %w", err)
		}
		return f, nil
	}
}

func openHTTP(ctx context.Context, url string, timeout time.Duration) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("source: build request: %w", err)
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: GET %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("source: GET %s: unexpected status %s", url, resp.Status)
	}
	return resp.Body, nil
}
