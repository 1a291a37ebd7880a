// Package backend talks to the survey ingestion server: the session check,
// the login link and the upload of a finished survey with its photos.
package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/mbolis/pozo-survey/log"
	"github.com/mbolis/pozo-survey/model"
)

const (
	EndpointAuthStatus = "/auth/status"
	EndpointLogin      = "/login"
	EndpointIngest     = "/ingestar-encuesta"
)

// longest piece of an error body kept in a StatusError
const maxMessage = 512

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	now        func() time.Time
}

type Option func(*Client)

// WithTimeout bounds every request. Zero, the default, never times out.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithToken sends a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func NewClient(baseURL string, opts ...Option) *Client {
	// session cookies issued by the backend are kept for the next requests
	jar, _ := cookiejar.New(nil)

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Jar: jar},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoginURL is where the user starts the external login flow. It is only ever
// offered as a link.
func (c *Client) LoginURL() string {
	return c.baseURL + EndpointLogin
}

// AuthStatus asks the backend whether the current session is valid. Any 2xx
// answer means yes; anything else, transport failures included, is an error.
func (c *Client) AuthStatus(ctx context.Context) error {
	// the timestamp keeps intermediary caches out of the way
	url := fmt.Sprintf("%s%s?_=%d", c.baseURL, EndpointAuthStatus, c.now().UnixMilli())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("auth status: new request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(resp, EndpointAuthStatus)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Ingest uploads one survey and its photos, and returns the response status.
// Any answer counts as delivered, except 401 which yields ErrUnauthorized.
func (c *Client) Ingest(ctx context.Context, e model.Encuesta, fotos []model.Attachment) (int, error) {
	body, contentType, err := EncodeSurvey(e, fotos)
	if err != nil {
		return 0, err
	}

	url := c.baseURL + EndpointIngest
	log.WithFields(log.Fields{
		"url":         url,
		"conexiones":  len(e.ListaConexiones),
		"fotos":       len(fotos),
		"pozo_numero": e.PozoNumero,
	}).Info("backend.ingest: sending survey")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return 0, fmt.Errorf("ingest: new request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ingest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return resp.StatusCode, c.statusError(resp, EndpointIngest)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) statusError(resp *http.Response, endpoint string) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxMessage))
	return &StatusError{
		StatusCode: resp.StatusCode,
		Endpoint:   endpoint,
		Message:    strings.TrimSpace(string(msg)),
		Timestamp:  c.now(),
	}
}
