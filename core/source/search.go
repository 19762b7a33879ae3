package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"GuildFM/core/utils"
	"GuildFM/logger"

	"golang.org/x/time/rate"
)

// Searcher returns the single best-match identifier for a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// YTDLPSearcher runs `yt-dlp --default-search ytsearch1: --get-id`.
type YTDLPSearcher struct {
	path    string
	timeout time.Duration
	limiter *rate.Limiter
	cookies *CookieJar
}

// SearcherConfig 搜索进程配置
type SearcherConfig struct {
	Path       string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	Cookies    *CookieJar
}

// NewYTDLPSearcher 创建基于 yt-dlp 的搜索器
func NewYTDLPSearcher(cfg SearcherConfig) *YTDLPSearcher {
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &YTDLPSearcher{
		path:    cfg.Path,
		timeout: timeout,
		limiter: rate.NewLimiter(limit, burst),
		cookies: cfg.Cookies,
	}
}

func (s *YTDLPSearcher) Search(ctx context.Context, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("search throttled: %w", err)
	}

	args := []string{"--default-search", "ytsearch1:", "--get-id", "--no-playlist"}
	args = append(args, s.cookies.Args()...)
	args = append(args, "--", query)

	var stdout bytes.Buffer
	stderr := &utils.TailBuffer{Max: 2048}
	cmd := utils.NewCommand(exec.CommandContext(ctx, s.path, args...))
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	logger.Debug("yt-dlp search finished",
		logger.String("query", query),
		logger.Int("exitCode", utils.ExitCode(err)),
		logger.Duration("elapsed", time.Since(start)))

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("search timed out after %s: %w", s.timeout, ctx.Err())
		}
		return "", fmt.Errorf("yt-dlp search failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return firstLine(stdout.String()), nil
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
