package geocode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"streetlight-watch/breaker"
	"streetlight-watch/metrics"
	"streetlight-watch/services"
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "StreetLightWatch/1.0"
	DefaultCacheTTL  = 24 * time.Hour

	maxResponseBytes = 1 << 20
)

type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	CacheTTL  time.Duration
}

// NominatimClient reverse geocodes coordinates against an OpenStreetMap
// Nominatim server.
type NominatimClient struct {
	cfg   Config
	http  *http.Client
	cache Cache
	cb    *gobreaker.CircuitBreaker[*services.Address]
	log   *zap.Logger
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
	Address     struct {
		City     string `json:"city"`
		Town     string `json:"town"`
		Village  string `json:"village"`
		Postcode string `json:"postcode"`
	} `json:"address"`
}

// cachedAddress is what the cache holds. Found is false for coordinates
// the server had no address for.
type cachedAddress struct {
	Found            bool   `json:"found"`
	FormattedAddress string `json:"formattedAddress,omitempty"`
	City             string `json:"city,omitempty"`
	Pincode          string `json:"pincode,omitempty"`
}

// NewNominatimClient builds a client. cache may be nil.
func NewNominatimClient(cfg Config, cache Cache, log *zap.Logger) *NominatimClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &NominatimClient{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		cache: cache,
		cb:    breaker.New[*services.Address]("geocoder", breaker.Settings{}, log),
		log:   log.Named("geocode"),
	}
}

func cacheKey(lat, lng float64) string {
	return fmt.Sprintf("geocode:%.5f:%.5f", lat, lng)
}

// Lookup returns the address at lat/lng. A nil address with a nil error
// means the server knows no address there. When the breaker is open the
// call fails without contacting the server.
func (c *NominatimClient) Lookup(ctx context.Context, lat, lng float64) (*services.Address, error) {
	key := cacheKey(lat, lng)
	if addr, ok := c.fromCache(ctx, key); ok {
		metrics.GeocodeLookups.WithLabelValues("cache_hit").Inc()
		return addr, nil
	}

	addr, err := c.cb.Execute(func() (*services.Address, error) {
		return c.reverse(ctx, lat, lng)
	})
	if err != nil {
		metrics.GeocodeLookups.WithLabelValues("error").Inc()
		if breaker.Rejected(err) {
			return nil, fmt.Errorf("geocoder unavailable: %w", err)
		}
		return nil, err
	}

	if addr == nil {
		metrics.GeocodeLookups.WithLabelValues("miss").Inc()
	} else {
		metrics.GeocodeLookups.WithLabelValues("hit").Inc()
	}
	c.toCache(ctx, key, addr)
	return addr, nil
}

func (c *NominatimClient) reverse(ctx context.Context, lat, lng float64) (*services.Address, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("reverse geocode failed: %s", resp.Status)
	}

	var body reverseResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode reverse geocode response: %w", err)
	}
	if body.Error != "" {
		// Nominatim answers "Unable to geocode" for points with no address.
		return nil, nil
	}

	city := body.Address.City
	if city == "" {
		city = body.Address.Town
	}
	if city == "" {
		city = body.Address.Village
	}
	return &services.Address{
		FormattedAddress: body.DisplayName,
		City:             city,
		Pincode:          body.Address.Postcode,
	}, nil
}

func (c *NominatimClient) fromCache(ctx context.Context, key string) (*services.Address, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.Warn("geocode cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var cached cachedAddress
	if err := json.Unmarshal(raw, &cached); err != nil {
		c.log.Warn("geocode cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !cached.Found {
		return nil, true
	}
	return &services.Address{
		FormattedAddress: cached.FormattedAddress,
		City:             cached.City,
		Pincode:          cached.Pincode,
	}, true
}

func (c *NominatimClient) toCache(ctx context.Context, key string, addr *services.Address) {
	if c.cache == nil {
		return
	}
	cached := cachedAddress{}
	if addr != nil {
		cached = cachedAddress{
			Found:            true,
			FormattedAddress: addr.FormattedAddress,
			City:             addr.City,
			Pincode:          addr.Pincode,
		}
	}
	raw, err := json.Marshal(cached)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.cfg.CacheTTL); err != nil {
		c.log.Warn("geocode cache write failed", zap.String("key", key), zap.Error(err))
	}
}

var _ services.Geocoder = (*NominatimClient)(nil)
