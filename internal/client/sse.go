package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/funpr/verza-invest-ai/internal/domain"
)

// readStream opens the SSE endpoint and pumps frames until the connection
// breaks or ctx is cancelled. onOpen fires once when the stream is
// established (the server's connected acknowledgment or any first frame).
// Comment frames count as liveness only; data frames are decoded and handed
// to onEvent.
func readStream(ctx context.Context, httpClient *http.Client, url string, onOpen func(), onEvent func(domain.Event)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream endpoint returned status %d", resp.StatusCode)
	}

	opened := false
	var data strings.Builder

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if !opened {
			opened = true
			onOpen()
		}

		line := scanner.Text()
		switch {
		case line == "":
			// Blank line terminates a frame.
			if data.Len() > 0 {
				payload := data.String()
				data.Reset()
				ev, err := domain.DecodeEvent([]byte(payload))
				if err != nil {
					// A malformed frame is the peer's bug, not a dead
					// connection. Skip it.
					continue
				}
				onEvent(ev)
			}
		case strings.HasPrefix(line, ":"):
			// Comment frame: connected acknowledgment or keep-alive.
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// Field we don't use (event:, id:, retry:). Ignore.
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	// EOF: server closed the stream.
	return io.ErrUnexpectedEOF
}
