// Package storage talks to the photo blob store over its HTTP API.
// Keys are namespaced company/job/rug paths; the bucket is fixed per
// deployment.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	BaseURL string
	Bucket  string
	Token   string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Bucket == "" {
		cfg.Bucket = "rug-photos"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  logger,
	}
}

func (c *Client) objectURL(key string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + c.cfg.Bucket + "/" + strings.TrimLeft(key, "/")
}

// Put uploads one object. Re-uploading the same key overwrites it, so
// retried syncs stay idempotent.
func (c *Client) Put(ctx context.Context, key, contentType string, data []byte) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.objectURL(key), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("storage.put.send_error", "key", key, "error", err)
		return err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Warn("storage.put.body_close_error", "key", key, "error", cerr)
		}
	}()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Error("storage.put.rejected", "key", key, "status", resp.StatusCode, "body", string(body))
		return fmt.Errorf("storage put %s: status %d", key, resp.StatusCode)
	}

	c.log.Info("storage.put.ok",
		"key", key,
		"bytes", len(data),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Get downloads one object and reports its content type.
func (c *Client) Get(ctx context.Context, key string) ([]byte, string, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.objectURL(key), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("storage.get.send_error", "key", key, "error", err)
		return nil, "", err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Warn("storage.get.body_close_error", "key", key, "error", cerr)
		}
	}()

	if resp.StatusCode/100 != 2 {
		return nil, "", fmt.Errorf("storage get %s: status %d", key, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}

	c.log.Info("storage.get.ok",
		"key", key,
		"bytes", len(data),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return data, resp.Header.Get("Content-Type"), nil
}
