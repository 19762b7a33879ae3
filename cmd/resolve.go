package cmd

import (
	"fmt"
	"strings"

	"GuildFM/cache"
	"GuildFM/config"
	"GuildFM/core/source"
	"GuildFM/logger"

	"github.com/spf13/cobra"
)

// resolveStack is the resolver with the cache and cookie jar it owns.
type resolveStack struct {
	resolver *source.Resolver
	cookies  *source.CookieJar
	closers  []func() error
}

func (r *resolveStack) Close() {
	for _, c := range r.closers {
		if err := c(); err != nil {
			logger.Warn("close failed", logger.ErrorField(err))
		}
	}
}

func buildResolveStack(cfg *config.Config) (*resolveStack, error) {
	rs := &resolveStack{}

	var resolutionCache cache.ResolutionCache = cache.NewMemoryResolutionCache()
	if cfg.CacheBackend == "redis" {
		client, err := cache.ConnectRedis(cfg)
		if err != nil {
			return nil, err
		}
		rs.closers = append(rs.closers, cache.CloseRedis)
		resolutionCache = cache.NewFallback(cache.NewRedisResolutionCache(client))
		logger.Info("resolution cache backed by Redis", logger.String("addr", cfg.RedisAddr()))
	}

	rs.cookies = source.NewCookieJar(cfg.CookiesFile)
	if err := rs.cookies.Watch(); err != nil {
		logger.Warn("cookies file not watched, presence is fixed at startup",
			logger.String("path", cfg.CookiesFile), logger.ErrorField(err))
	} else {
		rs.closers = append(rs.closers, rs.cookies.Close)
	}

	searcher := source.NewYTDLPSearcher(source.SearcherConfig{
		Path:       cfg.YTDLPPath,
		Timeout:    cfg.ResolveTimeout,
		RatePerSec: cfg.ResolveRatePerSec,
		Burst:      cfg.ResolveBurst,
		Cookies:    rs.cookies,
	})
	rs.resolver = source.NewResolver(resolutionCache, searcher)
	return rs, nil
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <query>",
	Short: "解析一首歌曲为可播放链接",
	Long:  `使用与 bot 相同的缓存和 yt-dlp 搜索，将 "歌手 - 标题" 或链接解析为播放链接。`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rs, err := buildResolveStack(cfg)
		if err != nil {
			return err
		}
		defer rs.Close()

		track := source.TrackFromQuery(strings.Join(args, " "), "cli")
		loc, err := rs.resolver.Resolve(cmd.Context(), track)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", loc.Kind, loc.URL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
