package docling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"paperbase/apps/backend/internal/text"
)

// ErrExtraction wraps every failure to turn a stored PDF into text:
// unreadable files, conversion service errors, malformed responses.
var ErrExtraction = errors.New("extraction failed")

// Extraction is the docling service's view of a converted PDF.
type Extraction struct {
	Pages     []text.PageText
	Language  string
	PageCount int
}

// Client calls the docling conversion service over HTTP. The service owns
// the actual PDF parsing; we only ship bytes and read back page texts.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Extract uploads the file at path and returns its per-page text.
// An empty document (no pages, or all pages blank) is not an error here;
// the caller decides what that means for the task.
func (c *Client) Extract(ctx context.Context, path string) (*Extraction, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrExtraction, filepath.Base(path), err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrExtraction, filepath.Base(path), err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	url := c.baseURL + "/extract"
	req, err := http.NewRequestWithContext(ctx, "POST", url, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: docling returned %d: %s", ErrExtraction, resp.StatusCode, msg)
	}

	var result struct {
		Pages []struct {
			Page int    `json:"page"`
			Text string `json:"text"`
		} `json:"pages"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", ErrExtraction, err)
	}

	ext := &Extraction{
		Language:  result.Language,
		PageCount: len(result.Pages),
	}
	if ext.Language == "" {
		ext.Language = "english"
	}
	for _, p := range result.Pages {
		ext.Pages = append(ext.Pages, text.PageText{Page: p.Page, Text: p.Text})
	}
	return ext, nil
}
