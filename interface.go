package ring

import (
	"context"
	"io"
	"net/url"
)

// API defines the Ring client operations.
// Client implements this interface, enabling mocking for tests.
type API interface {
	// ============================================================================
	// Session Operations
	// ============================================================================

	Authenticate(ctx context.Context, opts *AuthOptions) (*Session, error)
	IsAuthenticated() bool
	AuthenticationToken() string
	CredentialsEncoded() string

	// ============================================================================
	// Device Operations
	// ============================================================================

	GetRingDevices(ctx context.Context) (*Devices, error)

	// ============================================================================
	// History/Recording Operations
	// ============================================================================

	GetDoorbotsHistory(ctx context.Context) ([]DoorbotHistoryEvent, error)
	GetDoorbotHistoryRecording(ctx context.Context, dingID string) (io.ReadCloser, error)
	GetEventRecording(ctx context.Context, event DoorbotHistoryEvent) (io.ReadCloser, error)
	GetDoorbotHistoryRecordingURI(dingID string) *url.URL
	GetDoorbotHistoryRecordingAndCreateFile(ctx context.Context, dingID, path string) error
	SaveEventRecording(ctx context.Context, event DoorbotHistoryEvent, path string) error
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)
