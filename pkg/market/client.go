package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mhartmeier/chartmorph/pkg/cache"
	"github.com/mhartmeier/chartmorph/pkg/errors"
	"github.com/mhartmeier/chartmorph/pkg/httputil"
	"github.com/mhartmeier/chartmorph/pkg/observability"
)

// DefaultBaseURL is the public chart API endpoint.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Client fetches price series with caching and a last-good fallback. A
// transient upstream failure returns the most recently fetched series for
// the symbol instead of an error, so the display keeps refreshing with
// slightly stale data rather than going blank.
type Client struct {
	http    *httputil.Client
	baseURL string
	store   cache.Cache
	keyer   cache.Keyer
	ttl     time.Duration
	logger  *log.Logger

	mu       sync.Mutex
	lastGood map[string]*Series
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithCache sets the series cache and its TTL.
func WithCache(store cache.Cache, ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.store = store
		c.ttl = ttl
	}
}

// WithHTTP replaces the underlying HTTP client.
func WithHTTP(h *httputil.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger. Default discards.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a market data client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:     httputil.NewClient(),
		baseURL:  DefaultBaseURL,
		store:    cache.NewNullCache(),
		keyer:    cache.NewDefaultKeyer(),
		ttl:      time.Minute,
		logger:   log.New(nil),
		lastGood: make(map[string]*Series),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// chartResponse mirrors the wire format of /v8/finance/chart/{symbol}.
// Quote arrays use null for missing bars, hence the pointer elements.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				LongName           string  `json:"longName"`
				ShortName          string  `json:"shortName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"previousClose"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch returns the price series for symbol over the given range
// (e.g. "1d", "5d", "1mo"). Results are cached; on upstream failure the
// last successfully fetched series is returned if one exists.
func (c *Client) Fetch(ctx context.Context, symbol, rng string) (*Series, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, errors.New(errors.ErrCodeInvalidSymbol, "symbol is empty")
	}

	key := c.keyer.SeriesKey(cache.SeriesKeyOpts{Symbol: symbol, Range: rng})
	if data, hit, err := c.store.Get(ctx, key); err == nil && hit {
		observability.Cache().OnCacheHit(ctx, "series")
		var s Series
		if err := json.Unmarshal(data, &s); err == nil {
			return &s, nil
		}
		// Corrupt entry, fall through to a fresh fetch.
		_ = c.store.Delete(ctx, key)
	} else {
		observability.Cache().OnCacheMiss(ctx, "series")
	}

	s, err := c.fetch(ctx, symbol, rng)
	if err != nil {
		c.mu.Lock()
		last := c.lastGood[symbol+"/"+rng]
		c.mu.Unlock()
		if last != nil {
			c.logger.Warn("fetch failed, serving last good series", "symbol", symbol, "age", time.Since(last.FetchedAt), "err", err)
			return last, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.lastGood[symbol+"/"+rng] = s
	c.mu.Unlock()

	if data, err := json.Marshal(s); err == nil {
		if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
			c.logger.Warn("series cache write failed", "symbol", symbol, "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "series", len(data))
		}
	}
	return s, nil
}

func (c *Client) fetch(ctx context.Context, symbol, rng string) (*Series, error) {
	interval := intervalFor(rng)
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(rng), url.QueryEscape(interval))

	var resp chartResponse
	if err := c.http.GetJSON(ctx, u, &resp); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFetchFailed, "%s", fmt.Sprintf("fetching %s", symbol))
	}
	if resp.Chart.Error != nil {
		if resp.Chart.Error.Code == "Not Found" {
			return nil, errors.New(errors.ErrCodeInvalidSymbol, "%s", fmt.Sprintf("unknown symbol %q", symbol))
		}
		return nil, errors.New(errors.ErrCodeFetchFailed, "%s", resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, errors.New(errors.ErrCodeFetchFailed, "empty chart result")
	}

	r := resp.Chart.Result[0]
	name := r.Meta.LongName
	if name == "" {
		name = r.Meta.ShortName
	}
	prevClose := r.Meta.PreviousClose
	if prevClose == 0 {
		prevClose = r.Meta.ChartPreviousClose
	}

	s := &Series{
		Symbol:    symbol,
		Name:      name,
		Currency:  r.Meta.Currency,
		Range:     rng,
		Price:     r.Meta.RegularMarketPrice,
		PrevClose: prevClose,
		FetchedAt: time.Now(),
	}

	if len(r.Indicators.Quote) > 0 {
		q := r.Indicators.Quote[0]
		for i, ts := range r.Timestamp {
			if i >= len(q.Close) || q.Close[i] == nil {
				continue
			}
			candle := Candle{
				Time:  time.Unix(ts, 0).UTC(),
				Close: *q.Close[i],
			}
			if i < len(q.Open) && q.Open[i] != nil {
				candle.Open = *q.Open[i]
			}
			if i < len(q.High) && q.High[i] != nil {
				candle.High = *q.High[i]
			}
			if i < len(q.Low) && q.Low[i] != nil {
				candle.Low = *q.Low[i]
			}
			if i < len(q.Volume) && q.Volume[i] != nil {
				candle.Volume = *q.Volume[i]
			}
			s.Candles = append(s.Candles, candle)
		}
	}

	if len(s.Candles) == 0 {
		return nil, errors.New(errors.ErrCodeFetchFailed, "%s", fmt.Sprintf("no usable bars for %s", symbol))
	}
	return s, nil
}

// intervalFor picks a bar interval that keeps the candle count reasonable
// for the requested range.
func intervalFor(rng string) string {
	switch rng {
	case "1d":
		return "5m"
	case "5d":
		return "30m"
	case "1mo", "3mo":
		return "1d"
	case "6mo", "1y":
		return "1wk"
	default:
		return "1d"
	}
}
