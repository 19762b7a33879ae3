package source

import (
	"context"
	"strings"

	"GuildFM/cache"
	"GuildFM/logger"
	"GuildFM/model"
)

// Resolver turns track metadata or a direct media URL into a playable locator.
type Resolver struct {
	cache    cache.ResolutionCache
	searcher Searcher
}

// NewResolver 创建解析器，cache 为进程共享的解析缓存
func NewResolver(c cache.ResolutionCache, s Searcher) *Resolver {
	return &Resolver{cache: c, searcher: s}
}

// Resolve returns a locator for the track. Direct links are returned unchanged.
// Otherwise "artist title" is looked up in the cache and, on a miss, searched.
// Every failure is a *ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, track model.Track) (Locator, error) {
	if loc, ok := DirectLocator(track.SourceURI); ok {
		return loc, nil
	}

	query := track.Query()
	if query == "" {
		// 没有歌手和标题时，用原始输入作为关键词
		query = strings.TrimSpace(track.SourceURI)
	}
	if query == "" {
		return Locator{}, &ResolutionError{Query: query, Err: ErrNoResult}
	}

	id, ok, err := r.cache.Get(ctx, query)
	if err != nil {
		logger.Warn("resolution cache lookup failed", logger.String("query", query), logger.ErrorField(err))
	}
	if ok && id != "" {
		logger.Debug("resolution cache hit", logger.String("query", query), logger.String("id", id))
		return Locator{URL: WatchURL(id), Kind: KindRemote}, nil
	}

	id, err = r.searcher.Search(ctx, query)
	if err != nil {
		return Locator{}, &ResolutionError{Query: query, Err: err}
	}
	if id == "" {
		return Locator{}, &ResolutionError{Query: query, Err: ErrNoResult}
	}

	if err := r.cache.Set(ctx, query, id); err != nil {
		logger.Warn("failed to cache resolution", logger.String("query", query), logger.ErrorField(err))
	}
	logger.Info("resolved track",
		logger.String("query", query), logger.String("id", id))
	return Locator{URL: WatchURL(id), Kind: KindRemote}, nil
}
