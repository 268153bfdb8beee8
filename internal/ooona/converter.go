// Package ooona is a client for the OOONA subtitle format-conversion API.
// It exchanges client credentials for a bearer token and converts SRT
// content into OOONA project JSON.
package ooona

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"subtitle-batcher/internal/domain"
)

// tokenExpiryBuffer renews the token well before the server-side expiry.
const tokenExpiryBuffer = 5 * time.Minute

// Converter converts subtitles through the OOONA external API.
type Converter struct {
	http *resty.Client
	cfg  domain.OoonaSettings

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

// New validates the settings and creates a converter. All credential
// fields are required once the integration is enabled.
func New(cfg domain.OoonaSettings) (*Converter, error) {
	var missing []string
	if strings.TrimSpace(cfg.BaseURL) == "" {
		missing = append(missing, "base URL")
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		missing = append(missing, "client ID")
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		missing = append(missing, "client secret")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		missing = append(missing, "API key")
	}
	if strings.TrimSpace(cfg.APIName) == "" {
		missing = append(missing, "API name")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("ooona converter: missing required settings: %s", strings.Join(missing, ", "))
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Converter{
		http: resty.New().SetTimeout(60 * time.Second),
		cfg:  cfg,
		now:  time.Now,
	}, nil
}

// Convert converts SRT content to OOONA project JSON.
func (c *Converter) Convert(ctx context.Context, srtContent string) (string, error) {
	token, err := c.authenticate(ctx)
	if err != nil {
		return "", err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetFileReader("", "subtitle.srt", strings.NewReader(srtContent)).
		Post(c.cfg.BaseURL + "/external/convert/srt/ooona")
	if err != nil {
		return "", fmt.Errorf("ooona convert: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("ooona convert: %s; body: %s", resp.Status(), resp.String())
	}

	content := strings.TrimSpace(resp.String())
	if content == "" {
		return "", fmt.Errorf("ooona convert: empty response")
	}
	return content, nil
}

// authenticate returns a cached token or fetches a fresh one.
func (c *Converter) authenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, nil
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "secret",
			"client_id":     c.cfg.ClientID,
			"client_secret": c.cfg.ClientSecret,
			"secret":        c.cfg.APIKey,
			"name":          c.cfg.APIName,
		}).
		SetResult(&out).
		Post(c.cfg.BaseURL + "/token")
	if err != nil {
		return "", fmt.Errorf("ooona auth: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("ooona auth: %s; body: %s", resp.Status(), resp.String())
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("ooona auth: no access token in response")
	}

	expiresIn := out.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}

	c.token = out.AccessToken
	c.expiresAt = c.now().Add(time.Duration(expiresIn)*time.Second - tokenExpiryBuffer)
	return c.token, nil
}
