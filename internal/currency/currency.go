// Package currency supplies the USD to local currency exchange rate.
package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ghsales/discount-engine/pkg/constants"
	"go.uber.org/zap"
)

// Provider returns how many local currency units one US dollar buys.
type Provider interface {
	USDRate(ctx context.Context) (float64, error)
}

// Static always returns the same rate.
type Static float64

// USDRate implements Provider.
func (s Static) USDRate(ctx context.Context) (float64, error) {
	if s <= 0 {
		return 0, fmt.Errorf("manual USD rate must be positive, got %v", float64(s))
	}
	return float64(s), nil
}

// CBU fetches the rate from the central bank's JSON feed and keeps the last
// good value. When the feed fails and nothing was fetched yet, the fallback
// provider answers.
type CBU struct {
	url      string
	client   *http.Client
	fallback Provider
	ttl      time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	rate      float64
	fetchedAt time.Time
	now       func() time.Time
}

var _ Provider = (*CBU)(nil)

// NewCBU creates a central bank provider. An empty url uses the public feed.
func NewCBU(url string, timeout time.Duration, fallback Provider, logger *zap.Logger) *CBU {
	if logger == nil {
		logger = zap.NewNop()
	}
	if url == "" {
		url = constants.DefaultCBUURL
	}
	if timeout <= 0 {
		timeout = constants.DefaultCBUTimeout
	}
	return &CBU{
		url:      url,
		client:   &http.Client{Timeout: timeout},
		fallback: fallback,
		ttl:      time.Hour,
		logger:   logger,
		now:      time.Now,
	}
}

type cbuQuote struct {
	Ccy  string `json:"Ccy"`
	Rate string `json:"Rate"`
	Date string `json:"Date"`
}

// USDRate implements Provider.
func (c *CBU) USDRate(ctx context.Context) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rate > 0 && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.rate, nil
	}

	rate, err := c.fetch(ctx)
	if err == nil {
		c.rate = rate
		c.fetchedAt = c.now()
		c.logger.Info("fetched central bank USD rate",
			zap.String("op", "currency.CBU.USDRate"),
			zap.Float64("rate", rate),
		)
		return rate, nil
	}

	c.logger.Warn("central bank rate unavailable",
		zap.String("op", "currency.CBU.USDRate"),
		zap.Error(err),
	)
	if c.rate > 0 {
		return c.rate, nil
	}
	if c.fallback != nil {
		return c.fallback.USDRate(ctx)
	}
	return 0, err
}

func (c *CBU) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return 0, fmt.Errorf("building rate request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("requesting rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rate feed returned %s", resp.Status)
	}

	var quotes []cbuQuote
	if err := json.NewDecoder(resp.Body).Decode(&quotes); err != nil {
		return 0, fmt.Errorf("decoding rate feed: %w", err)
	}
	if len(quotes) == 0 {
		return 0, errors.New("rate feed returned no quotes")
	}

	rate, err := strconv.ParseFloat(strings.TrimSpace(quotes[0].Rate), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing rate %q: %w", quotes[0].Rate, err)
	}
	if rate <= 0 {
		return 0, fmt.Errorf("rate feed returned non-positive rate %v", rate)
	}
	return rate, nil
}

// ToLocal converts an amount in the given currency to local currency.
func ToLocal(ctx context.Context, p Provider, amount float64, code string) (float64, error) {
	switch strings.ToUpper(code) {
	case "", constants.CurrencyLocal:
		return amount, nil
	case constants.CurrencyUSD:
		rate, err := p.USDRate(ctx)
		if err != nil {
			return 0, err
		}
		return amount * rate, nil
	}
	return 0, fmt.Errorf("unsupported currency %q", code)
}
