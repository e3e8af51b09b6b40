package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RequestConfig holds configuration for HTTP requests
type RequestConfig struct {
	Logger          Logger
	Headers         map[string][]string
	ResponseHandler func(*http.Response) error
	Client          *http.Client
	Method          string
	URL             string
	Timeout         time.Duration
	MaxRetries      int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	RetryEnabled    bool
}

// Logger interface for customizable logging
type Logger interface {
	Printf(format string, v ...interface{})
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err carries the given HTTP status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// DefaultRequestConfig returns a RequestConfig with sensible defaults
func DefaultRequestConfig(method, url string) RequestConfig {
	return RequestConfig{
		Method:         method,
		URL:            url,
		Timeout:        5 * time.Second,
		RetryEnabled:   true,
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Logger:         log.Default(),
	}
}

// Response represents an HTTP response with additional metadata
type Response struct {
	Headers    http.Header
	Request    *http.Request
	Body       []byte
	StatusCode int
}

// Request performs an HTTP request with configurable retry logic. Client
// errors (4xx other than 429) are not retried.
func Request(ctx context.Context, config RequestConfig, payload interface{}) (*Response, error) {
	var payloadBytes []byte
	if payload != nil {
		var err error
		switch v := payload.(type) {
		case []byte:
			payloadBytes = v
		case string:
			payloadBytes = []byte(v)
		default:
			payloadBytes, err = json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal payload: %w", err)
			}
		}
	}

	client := config.Client
	if client == nil {
		client = &http.Client{
			Timeout: config.Timeout,
		}
	}

	var response *Response
	var firstAttempt = true

	operation := func() error {
		if !firstAttempt && config.Logger != nil {
			config.Logger.Printf("Retrying request to %s", config.URL)
		}
		firstAttempt = false

		var reqBody io.Reader
		if payloadBytes != nil {
			reqBody = bytes.NewReader(payloadBytes)
		}
		req, err := http.NewRequestWithContext(ctx, config.Method, config.URL, reqBody)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		for key, values := range config.Headers {
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}

		// Set default content-type for methods with body
		if reqBody != nil && (config.Method == http.MethodPost || config.Method == http.MethodPut || config.Method == http.MethodPatch) {
			if req.Header.Get("Content-Type") == "" {
				req.Header.Set("Content-Type", "application/json")
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		response = &Response{
			StatusCode: resp.StatusCode,
			Body:       body,
			Headers:    resp.Header,
			Request:    req,
		}

		if config.ResponseHandler != nil {
			if err := config.ResponseHandler(resp); err != nil {
				return err
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			statusErr := &StatusError{StatusCode: resp.StatusCode, Body: body}
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(statusErr)
			}
			return statusErr
		}

		return nil
	}

	var err error
	if config.RetryEnabled {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = config.InitialBackoff
		b.MaxInterval = config.MaxBackoff
		b.MaxElapsedTime = time.Duration(config.MaxRetries) * config.MaxBackoff

		err = backoff.Retry(operation, backoff.WithContext(b, ctx))
	} else {
		err = operation()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
	}

	if err != nil {
		if config.Logger != nil {
			config.Logger.Printf("Request failed: %v", err)
		}
		return response, err // Return response even on error for inspection
	}

	return response, nil
}
