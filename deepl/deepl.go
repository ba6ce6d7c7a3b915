// Package deepl implements a client for the DeepL v2 translate endpoint.
//
// One call translates a whole batch of source strings in a single
// form-encoded POST and returns the translations in the same order. The
// endpoint is selected from the credential tier: free-tier keys (suffix
// ":fx" or containing "-free") route to api-free.deepl.com, everything else
// to api.deepl.com. An explicit endpoint override wins over tier detection.
package deepl

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// ProEndpoint is the paid-tier translate URL.
	ProEndpoint = "https://api.deepl.com/v2/translate"
	// FreeEndpoint is the free-tier translate URL.
	FreeEndpoint = "https://api-free.deepl.com/v2/translate"

	// MaxTextsPerRequest is DeepL's documented per-request item ceiling.
	// Batch sizes must stay below it.
	MaxTextsPerRequest = 50

	freeKeySuffix = ":fx"
	freeKeyMarker = "-free"

	defaultTimeout = 60 * time.Second
)

// Target language variants accepted by the service.
const (
	TargetEnglishUS = "EN-US"
	TargetEnglishGB = "EN-GB"
)

// ValidTarget reports whether variant is one of the two supported English
// variants.
func ValidTarget(variant string) bool {
	return variant == TargetEnglishUS || variant == TargetEnglishGB
}

// EndpointForKey returns the translate URL matching the credential tier.
func EndpointForKey(key string) string {
	if strings.HasSuffix(key, freeKeySuffix) || strings.Contains(key, freeKeyMarker) {
		return FreeEndpoint
	}
	return ProEndpoint
}

// Config holds the client construction parameters. The credential is always
// passed in explicitly so the client stays testable against a fake endpoint.
type Config struct {
	// Key is the DeepL API credential. Required.
	Key string
	// Endpoint overrides tier-based endpoint selection when non-empty.
	Endpoint string
	// Timeout is the per-request timeout. Default: 60s.
	Timeout time.Duration
}

// Client issues batch translation requests. Safe for reuse across requests;
// holds no per-run state.
type Client struct {
	key      string
	endpoint string
	http     *resty.Client
}

// New builds a Client from cfg.
func New(cfg Config) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = EndpointForKey(cfg.Key)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		key:      cfg.Key,
		endpoint: endpoint,
		http:     resty.New().SetTimeout(timeout),
	}
}

// Endpoint returns the translate URL the client will POST to.
func (c *Client) Endpoint() string { return c.endpoint }

type translateResponse struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
}

// Translate sends one batch of source texts and returns the translated
// strings in the same order. The returned slice always has len(texts)
// elements on success. An empty input returns nil without any HTTP call.
func (c *Client) Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.key == "" {
		return nil, fmt.Errorf("deepl: API key is not set")
	}

	form := url.Values{
		"auth_key":            {c.key},
		"source_lang":         {sourceLang},
		"target_lang":         {targetLang},
		"preserve_formatting": {"1"},
		"text":                texts,
	}

	var result translateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		SetResult(&result).
		Post(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("deepl: request failed: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{Status: resp.StatusCode(), Body: truncate(string(resp.Body()), 500)}
	}

	if len(result.Translations) != len(texts) {
		return nil, fmt.Errorf("deepl: sent %d texts, got %d translations", len(texts), len(result.Translations))
	}

	out := make([]string, len(texts))
	for i, tr := range result.Translations {
		out[i] = tr.Text
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
