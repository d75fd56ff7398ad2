package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultFetchTimeout bounds a protocol-adaptor block's outbound call.
const DefaultFetchTimeout = 10 * time.Second

var fetchClient = &http.Client{Timeout: DefaultFetchTimeout}

// FetchJSON GETs url and decodes the JSON body into out. Intended to be
// called from inside an ioworker.Pool job, never from a block's Execute
// body directly.
func FetchJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := fetchClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
