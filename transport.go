package ring

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const formContentType = "application/x-www-form-urlencoded; charset=UTF-8"

// Doer performs a single HTTP exchange. *http.Client satisfies it, and tests
// substitute their own implementation to avoid the network.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// formField is a single key/value pair of a form-encoded body.
// A slice of them keeps the order the fields were added in.
type formField struct {
	Key   string
	Value string
}

// encodeForm joins fields as key=value pairs separated by '&'.
// Values are written verbatim; callers apply any escaping they need.
func encodeForm(fields []formField) []byte {
	var buf bytes.Buffer
	for _, f := range fields {
		if buf.Len() > 0 {
			buf.WriteByte('&')
		}
		buf.WriteString(f.Key)
		buf.WriteByte('=')
		buf.WriteString(f.Value)
	}
	return buf.Bytes()
}

// transport performs exactly one HTTP exchange per call.
// Every method takes an optional substitute Doer which, when non-nil,
// is used instead of the default one.
type transport struct {
	doer    Doer
	timeout time.Duration
	logger  *slog.Logger
}

func (t *transport) pick(sub Doer) Doer {
	if sub != nil {
		return sub
	}
	return t.doer
}

func (t *transport) deadline(timeout time.Duration) time.Duration {
	if timeout > 0 {
		return timeout
	}
	if t.timeout > 0 {
		return t.timeout
	}
	return DefaultTimeout
}

// getContents issues a GET and returns the whole response body as text.
// A response without a body yields "" and no error.
func (t *transport) getContents(ctx context.Context, sub Doer, rawURL string, header http.Header, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.deadline(timeout))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := t.send(sub, req)
	if err != nil {
		return "", err
	}
	return readBody(resp)
}

// formPost writes fields as a form-encoded body, sends it and returns the
// response body as text.
func (t *transport) formPost(ctx context.Context, sub Doer, rawURL string, fields []formField, header http.Header, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.deadline(timeout))
	defer cancel()

	body := encodeForm(fields)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", formContentType)
	req.ContentLength = int64(len(body))

	resp, err := t.send(sub, req)
	if err != nil {
		return "", err
	}
	return readBody(resp)
}

// downloadFile issues a ranged GET from byte 0 and returns the live response
// body. The timeout bounds the wait for response headers only; the caller owns
// the returned stream and must close it.
func (t *transport) downloadFile(ctx context.Context, sub Doer, rawURL string, timeout time.Duration) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(t.deadline(timeout), cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		timer.Stop()
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Range", "bytes=0-")

	resp, err := t.send(sub, req)
	if !timer.Stop() && err == nil {
		// headers arrived as the deadline fired; the body is already cancelled
		closeBody(resp)
		cancel()
		return nil, fmt.Errorf("request failed: %w", context.DeadlineExceeded)
	}
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.Body == nil {
		cancel()
		return nil, nil
	}
	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

// send performs the exchange and converts error statuses into errors.
// On error the response body has already been closed.
func (t *transport) send(sub Doer, req *http.Request) (*http.Response, error) {
	start := time.Now()
	logRequest(t.logger, req)

	resp, err := t.pick(sub).Do(req)
	if err != nil {
		err = redactURLError(err, req.URL)
		logResponse(t.logger, req, 0, time.Since(start), err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp == nil {
		err := fmt.Errorf("request failed: no response")
		logResponse(t.logger, req, 0, time.Since(start), err)
		return nil, err
	}
	logResponse(t.logger, req, resp.StatusCode, time.Since(start), nil)

	if resp.StatusCode >= 400 {
		data, _ := readAll(resp)
		return nil, statusError(resp.StatusCode, []byte(data))
	}
	return resp, nil
}

// redactURLError masks the auth token in the URL net/http embeds in its
// errors.
func redactURLError(err error, reqURL *url.URL) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	if u, perr := url.Parse(urlErr.URL); perr == nil {
		urlErr.URL = RedactURL(u)
	} else {
		urlErr.URL = RedactURL(reqURL)
	}
	return err
}

// statusError converts an HTTP error status into an error.
func statusError(statusCode int, body []byte) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		var errResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &errResp); err == nil {
			if errResp.Message != "" {
				return &APIError{StatusCode: statusCode, Message: errResp.Message}
			}
			if errResp.Error != "" {
				return &APIError{StatusCode: statusCode, Message: errResp.Error}
			}
		}
		return &APIError{StatusCode: statusCode, Message: truncatePreview(body)}
	}
}

// readBody reads and closes the response body.
func readBody(resp *http.Response) (string, error) {
	if resp.Body == nil || resp.Body == http.NoBody {
		return "", nil
	}
	data, err := readAll(resp)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}

// readAll drains the body, undoing any Content-Encoding the server applied.
// Setting Accept-Encoding by hand switches off net/http's transparent gzip
// handling, so it is done here.
func readAll(resp *http.Response) (string, error) {
	if resp.Body == nil {
		return "", nil
	}
	defer resp.Body.Close()

	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", err
		}
		defer gz.Close()
		r = gz
	case "deflate":
		// servers disagree on whether deflate carries the zlib wrapper
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		switch {
		case errors.Is(err, zlib.ErrHeader):
			fr := flate.NewReader(bytes.NewReader(raw))
			defer fr.Close()
			r = fr
		case err != nil:
			return "", err
		default:
			defer zr.Close()
			r = zr
		}
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, r); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
}

// cancelOnClose releases the request context once the stream is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
