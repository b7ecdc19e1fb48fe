package sentinel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/yvy-orbital/yvy-field-service/internal/cache"
	"github.com/yvy-orbital/yvy-field-service/internal/imagery"
	"github.com/yvy-orbital/yvy-field-service/internal/logger"
	"github.com/yvy-orbital/yvy-field-service/internal/properties"
)

const catalogCacheTTL = 6 * time.Hour

var (
	ErrMissingCredentials = errors.New("missing Copernicus credentials: COPERNICUS_CLIENT_ID, COPERNICUS_CLIENT_SECRET or COPERNICUS_TOKEN_URL")
	ErrUnauthorized       = errors.New("unauthorized access, check your client ID and secret")
)

// Client talks to the Sentinel Hub Catalog and Process APIs of the
// Copernicus Data Space. It implements imagery.Provider.
type Client struct {
	cfg     properties.Copernicus
	clients []*http.Client
	limiter *rate.Limiter
	catalog *cache.FileCache[[]imagery.SceneMeta]

	barOnce sync.Once
	bar     *progressbar.ProgressBar
}

var _ imagery.Provider = (*Client)(nil)

// NewClient builds one OAuth2 client per configured client id. base, when
// not nil, is used for both token and API calls.
func NewClient(cfg properties.Copernicus, base *http.Client) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.TokenURL == "" {
		return nil, ErrMissingCredentials
	}
	ids := strings.Split(cfg.ClientID, ",")
	secrets := strings.Split(cfg.ClientSecret, ",")
	if len(ids) != len(secrets) {
		return nil, fmt.Errorf("mismatched number of client IDs (%d) and secrets (%d)", len(ids), len(secrets))
	}
	if base == nil {
		base = &http.Client{Timeout: 2 * time.Minute}
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	c := &Client{cfg: cfg}
	for i, id := range ids {
		cc := &clientcredentials.Config{
			ClientID:     strings.TrimSpace(id),
			ClientSecret: strings.TrimSpace(secrets[i]),
			TokenURL:     cfg.TokenURL,
		}
		c.clients = append(c.clients, cc.Client(tokenCtx))
	}

	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	} else {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if cfg.CacheDir != "" {
		c.catalog = cache.NewFileCache[[]imagery.SceneMeta](cfg.CacheDir, catalogCacheTTL)
	}
	return c, nil
}

// post sends body to url, rotating through the configured credentials. Each
// credential gets cfg.Retries attempts; an authorization failure moves on to
// the next credential immediately.
func (c *Client) post(ctx context.Context, url string, body []byte, accept string) ([]byte, error) {
	retries := max(c.cfg.Retries, 1)

	var err error
	for i, client := range c.clients {
		log := logger.Log.WithFields(logrus.Fields{"url": url, "credential": i})
		for attempt := 1; attempt <= retries; attempt++ {
			var content []byte
			content, err = c.attempt(ctx, client, url, body, accept)
			if err == nil {
				return content, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, ErrUnauthorized) {
				break
			}
			log.WithFields(logrus.Fields{"attempt": attempt, "error": err}).Warn("sentinel hub request failed")
			if attempt < retries {
				if err := sleep(ctx, c.cfg.RetryDelay); err != nil {
					return nil, err
				}
			}
		}
		if !errors.Is(err, ErrUnauthorized) {
			err = fmt.Errorf("failed after %d attempts: %w", retries, err)
		}
	}
	return nil, err
}

func (c *Client) attempt(ctx context.Context, client *http.Client, url string, body []byte, accept string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)

	resp, err := client.Do(req)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, rerr.Error())
		}
		return nil, err
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return content, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	default:
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(content), 300))
	}
}

func (c *Client) progress() *progressbar.ProgressBar {
	if !c.cfg.ShowProgress {
		return nil
	}
	c.barOnce.Do(func() {
		c.bar = progressbar.Default(-1, "Downloading scenes")
	})
	return c.bar
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
