package link

import (
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	userAgent = "nLogin-Addon"

	dialTimeout    = 5 * time.Second
	requestTimeout = 15 * time.Second
	maxRedirects   = 20

	// maxResponseBytes bounds how much of a cloud reply is read. Key sets
	// are tiny; anything larger is not ours.
	maxResponseBytes = 4 << 20
)

// httpClient is a thin wrapper over net/http with the timeouts and the
// redirect cap the cloud endpoints expect. Error response bodies are read
// and returned so callers can surface them as diagnostics.
type httpClient struct {
	c *http.Client
}

func newHTTPClient() *httpClient {
	return &httpClient{
		c: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: dialTimeout,
				}).DialContext,
				TLSHandshakeTimeout:   dialTimeout,
				ResponseHeaderTimeout: dialTimeout,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
	}
}

func (h *httpClient) get(url, token string) (int, []byte, error) {
	return h.do(http.MethodGet, url, token, nil)
}

func (h *httpClient) post(url, token string, body []byte) (int, []byte, error) {
	return h.do(http.MethodPost, url, token, body)
}

func (h *httpClient) do(method, url, token string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := h.c.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, b, nil
}
