package marketcache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sudipto00/StocksBot-CrossP-sub000/pkg/types"
)

// BarSource fetches historical bars on a cache miss; any broker.Port
// value satisfies this directly.
type BarSource interface {
	GetHistoricalBars(ctx context.Context, symbol string, start, end time.Time, limit int) ([]*types.OHLCV, error)
}

// Cache is a JSON-file-backed daily OHLCV cache sitting in front of a
// broker. It implements the backtester's DataLoader interface, so the
// optimizer's repeated walk-forward and parameter-search runs over the
// same symbol/date ranges don't re-fetch from the broker every time.
type Cache struct {
	mu        sync.Mutex
	logger    *zap.Logger
	dir       string
	source    BarSource
	validator *Validator
	memory    map[string][]*types.OHLCV
}

// New builds a cache rooted at dir, falling back to source on a miss.
// dir is created if it does not already exist.
func New(logger *zap.Logger, dir string, source BarSource) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating market cache directory: %w", err)
	}
	return &Cache{
		logger:    logger.Named("marketcache"),
		dir:       dir,
		source:    source,
		validator: NewValidator(logger),
		memory:    make(map[string][]*types.OHLCV),
	}, nil
}

// LoadOHLCV returns ascending daily bars for symbol covering [start, end],
// serving from the in-memory/disk cache when available and falling back
// to the broker otherwise. Satisfies backtester.DataLoader.
func (c *Cache) LoadOHLCV(ctx context.Context, symbol string, start, end time.Time) ([]*types.OHLCV, error) {
	c.mu.Lock()
	if bars, ok := c.memory[symbol]; ok {
		c.mu.Unlock()
		return filterRange(bars, start, end), nil
	}
	c.mu.Unlock()

	if bars, err := c.readDisk(symbol); err == nil && len(bars) > 0 {
		c.mu.Lock()
		c.memory[symbol] = bars
		c.mu.Unlock()
		return filterRange(bars, start, end), nil
	}

	bars, err := c.source.GetHistoricalBars(ctx, symbol, start, end, 0)
	if err != nil {
		return nil, fmt.Errorf("fetching bars for %s: %w", symbol, err)
	}
	bars = Clean(bars)

	report := c.validator.Validate(bars, symbol)
	if !report.IsUsable {
		c.logger.Warn("fetched bar series failed quality gate",
			zap.String("symbol", symbol), zap.Int("score", report.QualityScore), zap.Int("issues", len(report.Issues)))
	}

	c.mu.Lock()
	c.memory[symbol] = bars
	c.mu.Unlock()
	if err := c.writeDisk(symbol, bars); err != nil {
		c.logger.Warn("failed to persist market cache entry", zap.String("symbol", symbol), zap.Error(err))
	}

	return filterRange(bars, start, end), nil
}

func (c *Cache) diskPath(symbol string) string {
	return filepath.Join(c.dir, symbol+".json")
}

func (c *Cache) readDisk(symbol string) ([]*types.OHLCV, error) {
	body, err := os.ReadFile(c.diskPath(symbol))
	if err != nil {
		return nil, err
	}
	var bars []*types.OHLCV
	if err := json.Unmarshal(body, &bars); err != nil {
		return nil, err
	}
	return bars, nil
}

func (c *Cache) writeDisk(symbol string, bars []*types.OHLCV) error {
	body, err := json.Marshal(bars)
	if err != nil {
		return err
	}
	return os.WriteFile(c.diskPath(symbol), body, 0o644)
}

// Invalidate drops a symbol from the in-memory cache (not disk), forcing
// the next LoadOHLCV to re-read from disk or re-fetch.
func (c *Cache) Invalidate(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.memory, symbol)
}

func filterRange(bars []*types.OHLCV, start, end time.Time) []*types.OHLCV {
	out := make([]*types.OHLCV, 0, len(bars))
	for _, bar := range bars {
		if bar.Timestamp.Before(start) || bar.Timestamp.After(end) {
			continue
		}
		out = append(out, bar)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
