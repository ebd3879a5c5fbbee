package openapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultTimeout bounds remote document fetches.
const DefaultTimeout = 15 * time.Second

// LoaderOptions configures where Load looks for documents.
type LoaderOptions struct {
	// FileSystem resolves relative paths; the OS filesystem is used when nil.
	FileSystem fs.FS
	// HTTPClient enables http(s) locations. Nil disables them.
	HTTPClient *http.Client
}

// LoaderOption mutates LoaderOptions.
type LoaderOption func(*LoaderOptions)

// WithFileSystem reads paths from fsys.
func WithFileSystem(fsys fs.FS) LoaderOption {
	return func(opts *LoaderOptions) { opts.FileSystem = fsys }
}

// WithHTTPClient allows remote documents.
func WithHTTPClient(client *http.Client) LoaderOption {
	return func(opts *LoaderOptions) { opts.HTTPClient = client }
}

// WithHTTPFallback allows remote documents through a default client.
func WithHTTPFallback(timeout time.Duration) LoaderOption {
	return func(opts *LoaderOptions) {
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		opts.HTTPClient = &http.Client{Timeout: timeout}
	}
}

// Load reads the raw document at location, a path or an http(s) URL.
func Load(ctx context.Context, location string, options ...LoaderOption) ([]byte, error) {
	var opts LoaderOptions
	for _, opt := range options {
		if opt != nil {
			opt(&opts)
		}
	}
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errors.New("openapi loader: location is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		if opts.HTTPClient == nil {
			return nil, errors.New("openapi loader: http support disabled")
		}
		return loadHTTP(ctx, opts.HTTPClient, location)
	}
	if opts.FileSystem != nil {
		data, err := fs.ReadFile(opts.FileSystem, strings.TrimPrefix(location, "/"))
		if err != nil {
			return nil, fmt.Errorf("openapi loader: read %s: %w", location, err)
		}
		return data, nil
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("openapi loader: read %s: %w", location, err)
	}
	return data, nil
}

func loadHTTP(ctx context.Context, client *http.Client, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("openapi loader: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openapi loader: fetch %s: %w", location, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openapi loader: fetch %s: status %d", location, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openapi loader: read %s: %w", location, err)
	}
	return data, nil
}
