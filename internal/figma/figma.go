// Package figma fetches rendered frames from the Figma REST API.
package figma

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

// DefaultBaseURL is the Figma REST API root.
const DefaultBaseURL = "https://api.figma.com"

// RenderScale is the fixed export scale for rendered frames.
const RenderScale = 2

// ErrInvalidURL is returned when a link does not identify a Figma file.
var ErrInvalidURL = errors.New("not a figma file URL")

// ErrNoFrame is returned when the file has no frame to render.
var ErrNoFrame = errors.New("figma file has no frame to render")

// Ref identifies a file and optionally a node within it.
type Ref struct {
	FileKey string
	NodeID  string
}

// ParseURL extracts the file key (the path segment after file, design or
// proto) and the node-id query parameter from a share link.
func ParseURL(raw string) (Ref, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return Ref{}, ErrInvalidURL
	}

	parts := strings.Split(u.Path, "/")
	for i, p := range parts {
		if p != "file" && p != "design" && p != "proto" {
			continue
		}
		if i+1 >= len(parts) || parts[i+1] == "" {
			return Ref{}, ErrInvalidURL
		}
		ref := Ref{FileKey: parts[i+1]}
		if node := u.Query().Get("node-id"); node != "" {
			ref.NodeID = strings.ReplaceAll(node, "-", ":")
		}
		return ref, nil
	}
	return Ref{}, ErrInvalidURL
}

// Image is a downloaded render.
type Image struct {
	MIMEType string
	Data     []byte
}

// Client talks to the Figma REST API with a personal access token.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client. A nil httpClient gets a retrying client with a
// small retry budget for transport errors and 5xx responses.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		rc := retryablehttp.NewClient()
		rc.RetryMax = 2
		rc.Logger = slog.Default()
		httpClient = rc.StandardClient()
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// FetchImage renders ref (or the first frame of its file) and downloads it.
func (c *Client) FetchImage(ctx context.Context, ref Ref, token string) (*Image, error) {
	nodeID := ref.NodeID
	if nodeID == "" {
		id, err := c.FirstFrameID(ctx, ref.FileKey, token)
		if err != nil {
			return nil, err
		}
		nodeID = id
	}

	imageURL, err := c.RenderURL(ctx, ref.FileKey, nodeID, token)
	if err != nil {
		return nil, err
	}
	return c.Download(ctx, imageURL)
}

// FirstFrameID returns the id of the first child of the file's first page.
func (c *Client) FirstFrameID(ctx context.Context, fileKey, token string) (string, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/v1/files/%s", c.baseURL, url.PathEscape(fileKey)), token)
	if err != nil {
		return "", fmt.Errorf("figma files API: %w", err)
	}

	id := gjson.GetBytes(body, "document.children.0.children.0.id").String()
	if id == "" {
		return "", ErrNoFrame
	}
	return id, nil
}

// RenderURL asks Figma to render nodeID as PNG and returns the image URL.
func (c *Client) RenderURL(ctx context.Context, fileKey, nodeID, token string) (string, error) {
	q := url.Values{}
	q.Set("ids", nodeID)
	q.Set("format", "png")
	q.Set("scale", fmt.Sprint(RenderScale))

	body, err := c.get(ctx, fmt.Sprintf("%s/v1/images/%s?%s", c.baseURL, url.PathEscape(fileKey), q.Encode()), token)
	if err != nil {
		return "", fmt.Errorf("figma images API: %w", err)
	}

	var resp struct {
		Err    any                `json:"err"`
		Images map[string]*string `json:"images"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode figma images response: %w", err)
	}
	if u := resp.Images[nodeID]; u != nil && *u != "" {
		return *u, nil
	}
	return "", ErrNoFrame
}

// Download fetches a rendered image. The MIME type comes from the response
// header, falling back to content sniffing.
func (c *Client) Download(ctx context.Context, imageURL string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download figma render: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download figma render: invalid status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read figma render: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return &Image{MIMEType: strings.TrimSpace(mimeType), Data: data}, nil
}

func (c *Client) get(ctx context.Context, endpoint, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Figma-Token", token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("invalid status code: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
