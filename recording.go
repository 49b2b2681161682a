package ring

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// GetDoorbotHistoryRecording opens the video recorded for a ding.
// The returned stream is positioned at the start of the content; the caller
// must close it.
func (c *Client) GetDoorbotHistoryRecording(ctx context.Context, dingID string) (io.ReadCloser, error) {
	token, err := c.requireToken()
	if err != nil {
		return nil, err
	}
	if dingID == "" {
		return nil, ErrEmptyDingID
	}

	start := time.Now()
	stream, err := c.transport.downloadFile(ctx, c.takeOverride(OperationRecording), recordingURL(dingID, token), 0)
	c.LogOperation(ctx, OperationRecording, time.Since(start), err)
	return stream, err
}

// GetEventRecording opens the video recorded for a history event.
func (c *Client) GetEventRecording(ctx context.Context, event DoorbotHistoryEvent) (io.ReadCloser, error) {
	return c.GetDoorbotHistoryRecording(ctx, event.DingID())
}

// GetDoorbotHistoryRecordingURI returns the recording URL of a ding without
// requesting it. The embedded token is only usable while the client is
// authenticated.
func (c *Client) GetDoorbotHistoryRecordingURI(dingID string) *url.URL {
	u, err := url.Parse(recordingURL(dingID, c.AuthenticationToken()))
	if err != nil {
		// unreachable: the id is path-escaped and the token query-escaped
		panic(fmt.Sprintf("ring: invalid recording URL for ding %q: %v", dingID, err))
	}
	return u
}

func recordingURL(dingID, token string) string {
	return endpoint("dings/"+url.PathEscape(dingID)+"/recording", token)
}

// GetDoorbotHistoryRecordingAndCreateFile downloads the recording of a ding
// into a new file at path. The directory containing path must already exist;
// this is checked before any request is made. The download stream is closed
// on every return path. A failed copy may leave a partial file behind.
func (c *Client) GetDoorbotHistoryRecordingAndCreateFile(ctx context.Context, dingID, path string) error {
	if err := checkDestination(path); err != nil {
		return err
	}

	stream, err := c.GetDoorbotHistoryRecording(ctx, dingID)
	if err != nil {
		return err
	}
	if stream == nil {
		return fmt.Errorf("ring: recording %s returned no content", dingID)
	}
	defer stream.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create recording file: %w", err)
	}
	if _, err := io.Copy(f, stream); err != nil {
		return errors.Join(fmt.Errorf("failed to write recording file: %w", err), f.Close())
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write recording file: %w", err)
	}
	return nil
}

// SaveEventRecording downloads the recording of a history event into path.
func (c *Client) SaveEventRecording(ctx context.Context, event DoorbotHistoryEvent, path string) error {
	return c.GetDoorbotHistoryRecordingAndCreateFile(ctx, event.DingID(), path)
}

// checkDestination validates a file path whose parent directory must exist.
func checkDestination(path string) error {
	if strings.TrimSpace(path) == "" {
		return destinationError("filename is empty:", path)
	}

	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return destinationError("directory does not exist:", dir)
	}
	return nil
}
