package config

import (
	"time"

	"github.com/abdul-hamid-achik/reqcheck/packages/core/suite"
)

const (
	DefaultAPIKeyHeader = "x-api-key"
	DefaultTimeout      = 30 * time.Second
	DefaultConcurrency  = 5
)

// DefaultConfig returns the configuration used when nothing else is set.
// It targets the public reqres.in deployment.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      suite.DefaultBaseURL,
		APIKey:       suite.DefaultAPIKey,
		APIKeyHeader: DefaultAPIKeyHeader,
		ContentType:  "application/json",
		Timeout:      DefaultTimeout,
		Concurrency:  DefaultConcurrency,
		Token: Token{
			Value: suite.ReqresToken,
			Path:  suite.DefaultTokenPath,
		},
	}
}

// DefaultHeaders returns the headers sent with every request: the
// configured headers plus the API key header when a key is set.
func (c *Config) DefaultHeaders() map[string]string {
	headers := make(map[string]string, len(c.Headers)+1)
	for k, v := range c.Headers {
		headers[k] = v
	}
	if c.APIKey != "" {
		header := c.APIKeyHeader
		if header == "" {
			header = DefaultAPIKeyHeader
		}
		headers[header] = c.APIKey
	}
	return headers
}

// TokenPolicy converts the token settings for the suite package.
func (c *Config) TokenPolicy() suite.TokenPolicy {
	return suite.TokenPolicy{
		Path:   c.Token.Path,
		Strict: c.GetStrictToken(),
		Value:  c.Token.Value,
	}
}
