// Package catalog proxies the NHTSA vPIC vehicle catalog (makes and models)
// with a Redis read-through cache, so the upstream is hit at most once per key
// per TTL.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultBaseURL = "https://vpic.nhtsa.dot.gov/api/vehicles"

type Client struct {
	http    *http.Client
	redis   *redis.Client
	logger  *slog.Logger
	baseURL string
	ttl     time.Duration
}

type Config struct {
	// BaseURL overrides the vPIC origin (tests point it at a local server).
	BaseURL string
	// TTL is the cache lifetime per key (24h when zero).
	TTL time.Duration
}

func NewClient(rdb *redis.Client, logger *slog.Logger, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		redis:   rdb,
		logger:  logger,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		ttl:     cfg.TTL,
	}
}

// Makes lists the passenger-car makes known to vPIC.
func (c *Client) Makes(ctx context.Context) ([]string, error) {
	return c.cached(ctx, "catalog:makes",
		c.baseURL+"/GetMakesForVehicleType/car?format=json", "MakeName")
}

// Models lists the models vPIC knows for a make and model year.
func (c *Client) Models(ctx context.Context, make string, year int) ([]string, error) {
	make = strings.TrimSpace(make)
	if make == "" {
		return nil, fmt.Errorf("make is required")
	}
	key := fmt.Sprintf("catalog:models:%s:%d", strings.ToLower(make), year)
	endpoint := fmt.Sprintf("%s/GetModelsForMakeYear/make/%s/modelyear/%d?format=json",
		c.baseURL, url.PathEscape(make), year)
	return c.cached(ctx, key, endpoint, "Model_Name")
}

type vpicResponse struct {
	Results []map[string]any `json:"Results"`
}

func (c *Client) cached(ctx context.Context, key, endpoint, field string) ([]string, error) {
	if raw, err := c.redis.Get(ctx, key).Result(); err == nil {
		var names []string
		if json.Unmarshal([]byte(raw), &names) == nil {
			return names, nil
		}
	} else if err != redis.Nil {
		c.logger.Warn("catalog cache read failed", "key", key, "err", err)
	}

	names, err := c.fetch(ctx, endpoint, field)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(names); err == nil {
		if err := c.redis.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("catalog cache write failed", "key", key, "err", err)
		}
	}
	return names, nil
}

func (c *Client) fetch(ctx context.Context, endpoint, field string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vehicle catalog upstream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vehicle catalog upstream returned %d", resp.StatusCode)
	}

	var decoded vpicResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("vehicle catalog decode: %w", err)
	}

	names := make([]string, 0, len(decoded.Results))
	seen := make(map[string]struct{}, len(decoded.Results))
	for _, result := range decoded.Results {
		name, _ := result[field].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}
