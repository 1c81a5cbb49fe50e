package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrFinished reports that the owner answered the fetch but the stream ended
// before any data arrived. Distinguished from transport failures so callers
// can surface it separately.
var ErrFinished = errors.New("fetch stream finished before any data")

// httpClient deliberately carries no timeout: a fetch may legitimately move a
// very large file. Callers bound the call with their context.
var httpClient = &http.Client{}

// Fetch retrieves the contents of upath from the producer at baseURL.
// The returned buffer is owned by the caller.
func Fetch(ctx context.Context, baseURL, upath string) ([]byte, error) {
	body, err := json.Marshal(Request{UPath: upath})
	if err != nil {
		return nil, fmt.Errorf("failed to encode fetch request for %q: %w", upath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+FetchPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request for %q: %w", upath, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch request for %q failed: %w", upath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("fetch of %q refused by owner: %s (%s)",
			upath, resp.Status, bytes.TrimSpace(msg))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed reading fetch response for %q: %w", upath, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("fetch of %q: %w", upath, ErrFinished)
	}
	return data, nil
}
