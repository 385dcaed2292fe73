package knowledge

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/blueberrycongee/supportdesk/internal/metrics"
	"github.com/blueberrycongee/supportdesk/pkg/types"
)

// CachedResponder decorates a Responder with an in-memory answer cache.
type CachedResponder struct {
	inner Responder
	cache *cache.Cache
}

// NewCachedResponder creates a cached responder. ttl is the lifetime of a cached answer.
func NewCachedResponder(inner Responder, ttl time.Duration) *CachedResponder {
	return &CachedResponder{
		inner: inner,
		cache: cache.New(ttl, ttl*2),
	}
}

// Answer returns a cached answer for an equivalent query or delegates to the inner responder.
func (c *CachedResponder) Answer(ctx context.Context, query string) (*types.KnowledgeAnswer, error) {
	key := cacheKey(query)
	if val, found := c.cache.Get(key); found {
		if ans, ok := val.(types.KnowledgeAnswer); ok {
			metrics.KnowledgeCacheLookups.WithLabelValues("hit").Inc()
			return copyAnswer(ans), nil
		}
	}
	metrics.KnowledgeCacheLookups.WithLabelValues("miss").Inc()

	ans, err := c.inner.Answer(ctx, query)
	if err != nil {
		return nil, err
	}
	// Verbatim answers mean generation failed; try again next time.
	if ans.Confidence != VerbatimConfidence {
		c.cache.Set(key, *copyAnswer(*ans), cache.DefaultExpiration)
	}
	return ans, nil
}

// Flush drops every cached answer.
func (c *CachedResponder) Flush() {
	c.cache.Flush()
}

func cacheKey(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

func copyAnswer(ans types.KnowledgeAnswer) *types.KnowledgeAnswer {
	if ans.Sources != nil {
		ans.Sources = append([]string(nil), ans.Sources...)
	}
	return &ans
}
