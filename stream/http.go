package stream

import (
	"fmt"
	"net/http"
)

// HTTPSource streams the body of an HTTP GET response. The size comes from
// the Content-Length header when the server supplies one, otherwise
// SizeUnknown. The body is never buffered in full.
type HTTPSource struct {
	url     string
	client  *http.Client
	headers http.Header
	resp    *http.Response
	size    int64
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithClient sets the HTTP client used for the request. Timeout policy
// belongs to the client; the source itself never retries.
func WithClient(client *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		if client != nil {
			s.client = client
		}
	}
}

// WithHeader sets a single header on the request.
func WithHeader(key, value string) HTTPOption {
	return func(s *HTTPSource) {
		if s.headers == nil {
			s.headers = make(http.Header)
		}
		s.headers.Set(key, value)
	}
}

// NewHTTPSource creates a source for the given URL.
func NewHTTPSource(url string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		url:    url,
		client: http.DefaultClient,
		size:   SizeUnknown,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open performs the GET request and resolves the size from Content-Length.
func (s *HTTPSource) Open() error {
	req, err := http.NewRequest(http.MethodGet, s.url, nil)
	if err != nil {
		return &OpenError{Target: s.url, Err: err}
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &OpenError{Target: s.url, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return &OpenError{Target: s.url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	if resp.ContentLength >= 0 {
		s.size = resp.ContentLength
	}
	s.resp = resp
	return nil
}

// Read implements io.Reader over the response body.
func (s *HTTPSource) Read(p []byte) (int, error) {
	return s.resp.Body.Read(p)
}

// Size returns the Content-Length, or SizeUnknown if the server sent none.
func (s *HTTPSource) Size() int64 { return s.size }

// Close closes the response body and releases the connection. Subsequent
// calls are no-ops.
func (s *HTTPSource) Close() error {
	if s.resp == nil {
		return nil
	}
	resp := s.resp
	s.resp = nil
	return resp.Body.Close()
}
