package deskctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/merchantdesk/internal/common"
)

// apiClient talks to the public JSON API with a bearer token.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

type uploadGrant struct {
	UploadURL string            `json:"upload_url"`
	Headers   map[string]string `json:"headers"`
	FileKey   string            `json:"file_key"`
	ExpiresIn int               `json:"expires_in"`
}

type downloadGrant struct {
	DownloadURL string `json:"download_url"`
	FileName    string `json:"file_name"`
	MimeType    string `json:"mime_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

type document struct {
	ID      int64  `json:"id"`
	FileKey string `json:"file_key"`
}

func (c *apiClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s %s: %s", path, resp.Status, e.Error)
		}
		return fmt.Errorf("%s %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) uploadURL(ctx context.Context, appID int64, name, mime string, size int64) (*uploadGrant, error) {
	var g uploadGrant
	err := c.post(ctx, "/get-upload-url", map[string]any{
		"application_id": appID,
		"filename":       name,
		"mime_type":      mime,
		"size":           size,
	}, &g)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *apiClient) confirm(ctx context.Context, appID int64, key, category, name, mime string, size int64) (*document, error) {
	var d document
	err := c.post(ctx, fmt.Sprintf("/applications/%d/documents", appID), map[string]any{
		"file_key":   key,
		"category":   category,
		"file_name":  name,
		"mime_type":  mime,
		"size_bytes": size,
	}, &d)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *apiClient) downloadURL(ctx context.Context, key string) (*downloadGrant, error) {
	var g downloadGrant
	if err := c.post(ctx, "/get-download-url", map[string]any{"file_key": key}, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *apiClient) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download failed: %s", resp.Status)
	}
	return resp.Body, nil
}
