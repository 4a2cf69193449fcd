// Package registry implements the JSON/HTTPS transport to the validation
// registry: enveloped request execution with retry, paginated collection
// search and async request status lookups.
package registry

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/metasync/internal/auth"
	"github.com/danmuck/metasync/internal/id"
	"github.com/danmuck/metasync/internal/observability"
)

// RequestsCollection is the collection holding async registration jobs.
const RequestsCollection = "requests"

type Config struct {
	BaseURL            string
	Tokens             auth.TokenSource
	CAFile             string
	InsecureSkipVerify bool
	RequestTimeout     time.Duration
	MaxRetries         uint64
	InitialInterval    time.Duration
}

func (c Config) WithDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 500 * time.Millisecond
	}
	return c
}

type Client struct {
	cfg   Config
	base  *url.URL
	httpc *http.Client
	log   zerolog.Logger
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrBaseURLRequired
	}
	cfg = cfg.WithDefaults()

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("registry: parse base url: %w", err)
	}

	tlsCfg, err := clientTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:  cfg,
		base: base,
		httpc: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				TLSClientConfig: tlsCfg,
			},
		},
		log: log.With().Str("component", "registry").Logger(),
	}, nil
}

func clientTLSConfig(cfg Config) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if caPath := strings.TrimSpace(cfg.CAFile); caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("registry: parse tls ca bundle: %s", caPath)
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}

// resolve turns a collection-relative or server-supplied reference into an
// absolute URL. Continuation links are forwarded verbatim.
func (c *Client) resolve(ref string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("registry: bad reference %q: %w", ref, err)
	}
	if strings.HasPrefix(ref, "/") {
		// Server-rooted reference: keep our scheme and host only.
		origin := &url.URL{Scheme: c.base.Scheme, Host: c.base.Host}
		return origin.ResolveReference(parsed).String(), nil
	}
	joined := *c.base
	joined.Path = strings.TrimRight(joined.Path, "/") + "/" + parsed.Path
	joined.RawQuery = parsed.RawQuery
	return joined.String(), nil
}

func metricLabel(ref string) string {
	ref = strings.TrimPrefix(ref, "/")
	if idx := strings.IndexAny(ref, "/?"); idx >= 0 {
		ref = ref[:idx]
	}
	if ref == "" {
		return "unknown"
	}
	return ref
}

// do executes one enveloped exchange. Transport failures are retried with
// exponential backoff; application-level rejections propagate immediately.
func (c *Client) do(ctx context.Context, method, ref string, payload Document) (Document, error) {
	target, err := c.resolve(ref)
	if err != nil {
		return nil, err
	}

	var body []byte
	if payload != nil {
		if body, err = wrapEnvelope(payload); err != nil {
			return nil, err
		}
	}

	var result Document
	op := func() error {
		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.cfg.Tokens != nil {
			token, err := c.cfg.Tokens.Token()
			if err != nil {
				return backoff.Permanent(fmt.Errorf("registry: token: %w", err))
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}

		start := time.Now()
		resp, err := c.httpc.Do(req)
		if err != nil {
			c.log.Warn().Err(err).Str("method", method).Str("url", target).
				Msg("transport failure")
			return fmt.Errorf("%w: %v", errTransient, err)
		}
		defer resp.Body.Close()

		observability.RecordRegistryRequest(metricLabel(ref), method,
			resp.StatusCode, time.Since(start))

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: %v", errTransient, err)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(&StatusError{
				Status:  resp.StatusCode,
				Message: errorMessage(data),
			})
		}
		if len(bytes.TrimSpace(data)) == 0 {
			result = nil
			return nil
		}
		result, err = stripEnvelope(data)
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	retrier := backoff.WithContext(
		backoff.WithMaxRetries(bo, c.cfg.MaxRetries), ctx)

	if err := backoff.Retry(op, retrier); err != nil {
		if errors.Is(err, errTransient) || errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, ref, err)
		}
		return nil, err
	}

	c.log.Debug().Str("method", method).Str("url", target).Msg("registry exchange")
	return result, nil
}

func errorMessage(data []byte) string {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return strings.TrimSpace(string(data))
}

// GetOne fetches a single entity by stripped identifier.
func (c *Client) GetOne(ctx context.Context, collection string, rid id.ID) (Document, error) {
	return c.do(ctx, http.MethodGet,
		fmt.Sprintf("%s/%d", collection, rid.Strip()), nil)
}

// GetByURL fetches a document through a server-supplied reference, such as
// an entry of an OE's dependencyUrls array.
func (c *Client) GetByURL(ctx context.Context, ref string) (Document, error) {
	return c.do(ctx, http.MethodGet, ref, nil)
}

// Create posts a new entity and decodes the resulting identifier, which
// may still be an async request marker.
func (c *Client) Create(ctx context.Context, collection string, doc Document) (id.ID, error) {
	resp, err := c.do(ctx, http.MethodPost, collection, doc)
	if err != nil {
		return 0, err
	}
	return decodeSubmitID(resp)
}

// Update replaces an entity in place. The returned identifier may be an
// async request marker when the server queues the change.
func (c *Client) Update(ctx context.Context, collection string, rid id.ID, doc Document) (id.ID, error) {
	resp, err := c.do(ctx, http.MethodPut,
		fmt.Sprintf("%s/%d", collection, rid.Strip()), doc)
	if err != nil {
		return 0, err
	}
	if resp == nil {
		return rid.Strip(), nil
	}
	return decodeSubmitID(resp)
}

// Delete removes an entity remotely.
func (c *Client) Delete(ctx context.Context, collection string, rid id.ID) error {
	_, err := c.do(ctx, http.MethodDelete,
		fmt.Sprintf("%s/%d", collection, rid.Strip()), nil)
	return err
}

// decodeSubmitID maps a create/update response to an identifier: a
// /requests/ reference means the job is asynchronous and the identifier
// carries the pending-processing flag until the poller resolves it.
func decodeSubmitID(resp Document) (id.ID, error) {
	ref, err := resp.String("url")
	if err != nil {
		return 0, err
	}
	n, err := TrailingID(ref)
	if err != nil {
		return 0, err
	}
	if strings.Contains(ref, "/"+RequestsCollection+"/") {
		return n | id.PendingProcessing, nil
	}
	return n, nil
}

// RequestOutcome is the state of one async registration job.
type RequestOutcome struct {
	Status     string
	ApprovedID id.ID
}

// Async request states reported by the registry.
const (
	RequestInitial    = "initial"
	RequestProcessing = "processing"
	RequestApproved   = "approved"
	RequestRejected   = "rejected"
)

// RequestStatus asks the registry whether an async job completed.
func (c *Client) RequestStatus(ctx context.Context, requestID id.ID) (RequestOutcome, error) {
	doc, err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("%s/%d", RequestsCollection, requestID.Strip()), nil)
	if err != nil {
		return RequestOutcome{}, err
	}

	status, err := doc.String("status")
	if err != nil {
		return RequestOutcome{}, err
	}
	outcome := RequestOutcome{Status: status}
	if status == RequestApproved {
		ref, err := doc.String("approvedUrl")
		if err != nil {
			return RequestOutcome{}, err
		}
		if outcome.ApprovedID, err = TrailingID(ref); err != nil {
			return RequestOutcome{}, err
		}
	}
	return outcome, nil
}
