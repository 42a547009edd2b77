package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// ============================================================
// Write helpers
// ============================================================

// Every write asks PostgREST for the affected rows back
// (Prefer: return=representation), so callers can count matches.

const returnRows = "return=representation"

func (c *Client) doPost(ctx context.Context, table string, row any) ([]byte, error) {
	return c.write(ctx, http.MethodPost, table, returnRows, row)
}

// doInsertIgnore posts row and lets the unique constraint named by the
// conflict columns drop duplicates; an ignored row is absent from the body.
func (c *Client) doInsertIgnore(ctx context.Context, table, conflict string, row any) ([]byte, error) {
	path := table + "?on_conflict=" + url.QueryEscape(conflict)
	return c.write(ctx, http.MethodPost, path, "resolution=ignore-duplicates,"+returnRows, row)
}

func (c *Client) doPatch(ctx context.Context, path string, changes any) ([]byte, error) {
	return c.write(ctx, http.MethodPatch, path, returnRows, changes)
}

func (c *Client) doDelete(ctx context.Context, path string) ([]byte, error) {
	return c.write(ctx, http.MethodDelete, path, returnRows, nil)
}

func (c *Client) write(ctx context.Context, method, path, prefer string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/rest/v1/"+path, reader)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, prefer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: write failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: write rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, statusError(method, path, resp.StatusCode, body)
	}
	return body, nil
}

// rowCount decodes a PostgREST representation just far enough to count rows.
func rowCount(body []byte) (int, error) {
	if len(body) == 0 {
		return 0, nil
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return 0, fmt.Errorf("decode representation: %w", err)
	}
	return len(rows), nil
}
