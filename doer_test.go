package ring

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testUsername = "Someone@gmail.com"
	testPassword = "Blah"
)

// fakeResponse is what fakeDoer answers for a route.
type fakeResponse struct {
	status int
	body   []byte
	header http.Header
	err    error
	noBody bool
	reader io.Reader
}

// recordedRequest is a request seen by fakeDoer with its body already read.
type recordedRequest struct {
	Method string
	Path   string
	Query  map[string][]string
	Header http.Header
	Body   string
	URL    string
}

// fakeDoer is a Doer spy serving canned responses keyed by path relative to BaseURL.
type fakeDoer struct {
	mu       sync.Mutex
	routes   map[string]fakeResponse
	requests []recordedRequest
	bodies   []*trackingBody
}

func newFakeDoer() *fakeDoer {
	return &fakeDoer{routes: make(map[string]fakeResponse)}
}

func (f *fakeDoer) handle(path string, resp fakeResponse) *fakeDoer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if resp.status == 0 {
		resp.status = http.StatusOK
	}
	f.routes[path] = resp
	return f
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		req.Body.Close()
	}

	path := strings.TrimPrefix(req.URL.Path, "/clients_api/")

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: req.Method,
		Path:   path,
		Query:  req.URL.Query(),
		Header: req.Header.Clone(),
		Body:   string(body),
		URL:    req.URL.String(),
	})
	route, ok := f.routes[path]
	f.mu.Unlock()

	if !ok {
		route = fakeResponse{status: http.StatusNotFound}
	}
	if route.err != nil {
		return nil, route.err
	}

	resp := &http.Response{
		StatusCode: route.status,
		Header:     route.header,
		Request:    req,
	}
	if resp.Header == nil {
		resp.Header = http.Header{}
	}
	if !route.noBody {
		var r io.Reader = bytes.NewReader(route.body)
		if route.reader != nil {
			r = route.reader
		}
		tb := &trackingBody{Reader: r}
		f.mu.Lock()
		f.bodies = append(f.bodies, tb)
		f.mu.Unlock()
		resp.Body = tb
	}
	return resp, nil
}

func (f *fakeDoer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeDoer) lastRequest(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests, "no request was made")
	return f.requests[len(f.requests)-1]
}

func (f *fakeDoer) allBodiesClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bodies {
		if !b.closed {
			return false
		}
	}
	return true
}

// trackingBody records whether it was closed.
type trackingBody struct {
	io.Reader
	mu     sync.Mutex
	closed bool
}

func (b *trackingBody) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// failingReader fails after yielding part of its content.
type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func readFixture(t testing.TB, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func decodeFixture[T any](t *testing.T, name string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(readFixture(t, name), &v))
	return v
}

// newAuthenticatedClient returns a client that has authenticated against the
// session fixture through doer.
func newAuthenticatedClient(t testing.TB, doer *fakeDoer) *Client {
	t.Helper()
	doer.handle("session", fakeResponse{body: readFixture(t, "AuthenticateResponse.json")})
	client := NewClient(testUsername, testPassword, WithDoer(doer))
	_, err := client.Authenticate(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, client.IsAuthenticated())
	return client
}
