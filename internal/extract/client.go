package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

const (
	defaultServiceURL = "http://localhost:8000"
	defaultModel      = "face_recognition"
)

// Client computes face encodings using the embedding server.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewClient creates a new embedding service client.
func NewClient(baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = defaultServiceURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
	}
}

// faceResponse represents one face in the embedding server's response.
type faceResponse struct {
	BBox      []float64 `json:"bbox"`
	Embedding []float32 `json:"embedding"`
}

// extractResponse represents the response from the embedding server.
type extractResponse struct {
	Model string         `json:"model"`
	Dim   int            `json:"dim"`
	Faces []faceResponse `json:"faces"`
}

// Extract posts the image to the embedding server and returns all detected
// faces with their encodings.
func (c *Client) Extract(ctx context.Context, image []byte) ([]Detection, error) {
	body, err := c.postMultipartImage(ctx, "/faces", image)
	if err != nil {
		return nil, err
	}

	var resp extractResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}

	detections := make([]Detection, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.Embedding) == 0 {
			continue
		}
		detections = append(detections, Detection{
			BBox:      f.BBox,
			Embedding: f.Embedding,
		})
	}
	return detections, nil
}

// postMultipartImage constructs a multipart form with the image data and
// posts it to the given endpoint.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.WriteField("model", c.model); err != nil {
		return nil, fmt.Errorf("failed to write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding service request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
