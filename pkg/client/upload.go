package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// File is the payload handed to an Uploader.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Uploader stores a file and returns the URL the form keeps as field value.
type Uploader interface {
	Upload(ctx context.Context, file File) (string, error)
}

// UploaderFunc adapts a function into an Uploader.
type UploaderFunc func(ctx context.Context, file File) (string, error)

// Upload calls the wrapped function.
func (fn UploaderFunc) Upload(ctx context.Context, file File) (string, error) {
	return fn(ctx, file)
}

var _ Uploader = (*Client)(nil)

// Upload posts the file as multipart form data to the backend upload
// endpoint. The envelope data may be the URL string or an object carrying a
// `url` property.
func (c *Client) Upload(ctx context.Context, file File) (string, error) {
	if file.Body == nil {
		return "", errors.New("client: upload body is required")
	}
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		return "", fmt.Errorf("client: create form file: %w", err)
	}
	if _, err := io.Copy(part, file.Body); err != nil {
		return "", fmt.Errorf("client: copy upload body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("client: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(c.uploadPath), &buf)
	if err != nil {
		return "", fmt.Errorf("client: build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	envelope, err := c.do(req)
	if err != nil {
		return "", err
	}
	if !envelope.Success {
		msg := envelope.FailureMessage()
		if msg == "" {
			msg = "upload failed"
		}
		return "", fmt.Errorf("client: upload %s: %s", file.Name, msg)
	}
	return uploadedURL(envelope)
}

func uploadedURL(envelope Envelope) (string, error) {
	var direct string
	if err := envelope.Decode(&direct); err == nil && strings.TrimSpace(direct) != "" {
		return strings.TrimSpace(direct), nil
	}
	var wrapped struct {
		URL     string `json:"url"`
		FileURL string `json:"fileUrl"`
	}
	if err := envelope.Decode(&wrapped); err != nil {
		return "", err
	}
	if wrapped.URL != "" {
		return wrapped.URL, nil
	}
	if wrapped.FileURL != "" {
		return wrapped.FileURL, nil
	}
	return "", errors.New("client: upload response carries no url")
}
