package translate

import (
	"context"

	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/domain"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const DefaultCacheSize = 1024

type cacheKey struct {
	target domain.LanguageCode
	text   string
}

// Cached wraps a Translator with an LRU of successful results. Concurrent
// requests for the same (target, text) share one upstream call. Errors are
// returned to every waiter and never cached.
type Cached struct {
	next  core.Translator
	cache *lru.Cache[cacheKey, string]
	group singleflight.Group
}

func NewCached(next core.Translator, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, string](size)
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, cache: cache}, nil
}

func (c *Cached) Translate(ctx context.Context, text string, target domain.LanguageCode) (string, error) {
	key := cacheKey{target: target, text: text}
	if out, ok := c.cache.Get(key); ok {
		return out, nil
	}
	v, err, shared := c.group.Do(string(target)+"\x00"+text, func() (any, error) {
		out, err := c.next.Translate(ctx, text, target)
		if err != nil {
			return "", err
		}
		c.cache.Add(key, out)
		return out, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		log.Debug().Str("module", "translate.cache").Str("lang", string(target)).Msg("shared upstream translation")
	}
	return v.(string), nil
}

func (c *Cached) Len() int { return c.cache.Len() }
