package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// maxContentRunes is the message length limit of chat webhooks.
const maxContentRunes = 2000

// Client posts a digest thread and its charts to a webhook.
type Client struct {
	url    string
	http   *http.Client
	logger *zap.Logger
}

func NewClient(url string, httpClient *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{url: url, http: httpClient, logger: logger}
}

// Enabled reports whether a webhook URL is configured.
func (c *Client) Enabled() bool {
	return c != nil && strings.TrimSpace(c.url) != ""
}

// Deliver uploads the thread file and images as one multipart request.
func (c *Client) Deliver(ctx context.Context, threadPath string, imagePaths []string) error {
	if !c.Enabled() {
		return fmt.Errorf("webhook url is not configured")
	}

	thread, err := os.ReadFile(threadPath)
	if err != nil {
		return fmt.Errorf("read thread: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("content", truncateRunes(string(thread), maxContentRunes)); err != nil {
		return fmt.Errorf("write content field: %w", err)
	}

	files := append([]string{threadPath}, imagePaths...)
	for i, path := range files {
		if err := attachFile(mw, fmt.Sprintf("files[%d]", i), path); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	c.logger.Info("webhook delivered", zap.Int("status", resp.StatusCode), zap.Int("files", len(files)))
	return nil
}

func attachFile(mw *multipart.Writer, field, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open attachment: %w", err)
	}
	defer file.Close()

	part, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy attachment %s: %w", path, err)
	}
	return nil
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}
