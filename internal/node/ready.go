package node

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const syncStatusRequest = `{"jsonrpc":"2.0","id":1,"method":"eth_syncing","params":[]}`

// waitReady polls the liveness endpoint at fixed intervals until the
// client answers that it is not syncing, or the bounded timeout expires.
// Fixed sleeps, not backoff: readiness is expected within a few polls
// once the process is up.
func (s *Supervisor) waitReady(ctx context.Context) error {
	deadline := time.Now().Add(s.ReadyTimeout)

	for attempt := 1; ; attempt++ {
		if ready := s.probe(ctx); ready {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("liveness endpoint %s not ready after %s (%d polls)",
				s.ReadyEndpoint, s.ReadyTimeout, attempt)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.PollInterval):
		}
	}
}

// probe issues one eth_syncing call. The client is ready when it answers
// with result == false; a syncing object or any transport error means
// "not yet".
func (s *Supervisor) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.ReadyEndpoint,
		strings.NewReader(syncStatusRequest))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false
	}

	result := gjson.GetBytes(body, "result")
	return result.Exists() && result.Type == gjson.False
}
