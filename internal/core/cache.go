package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/coocood/freecache"
)

// ResultCache memoizes predictions by text digest. Classification is a pure
// function of the frozen model and the text, so entries never go stale for
// the lifetime of the process; the ttl only bounds memory turnover.
type ResultCache struct {
	cache     *freecache.Cache
	expirySec int
}

func NewResultCache(sizeInBytes int, ttl time.Duration) *ResultCache {
	return &ResultCache{
		cache:     freecache.NewCache(sizeInBytes),
		expirySec: int(ttl / time.Second),
	}
}

func TextDigest(text string) []byte {
	sum := sha256.Sum256([]byte(text))
	return sum[:]
}

func TextDigestHex(text string) string {
	return hex.EncodeToString(TextDigest(text))
}

func (c *ResultCache) Get(text string) (Prediction, bool) {
	data, err := c.cache.Get(TextDigest(text))
	if err != nil {
		if !errors.Is(err, freecache.ErrNotFound) {
			slog.Warn("result cache lookup failed", "error", err)
		}
		return Prediction{}, false
	}

	var pred Prediction
	if err := json.Unmarshal(data, &pred); err != nil {
		slog.Warn("dropping undecodable result cache entry", "error", err)
		c.cache.Del(TextDigest(text))
		return Prediction{}, false
	}
	return pred, true
}

func (c *ResultCache) Set(text string, pred Prediction) {
	data, err := json.Marshal(pred)
	if err != nil {
		slog.Warn("unable to encode prediction for result cache", "error", err)
		return
	}
	if err := c.cache.Set(TextDigest(text), data, c.expirySec); err != nil {
		slog.Warn("unable to store prediction in result cache", "error", err)
	}
}

func (c *ResultCache) HitRate() float64 {
	return c.cache.HitRate()
}

func (c *ResultCache) EntryCount() int64 {
	return c.cache.EntryCount()
}
