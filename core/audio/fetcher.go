package audio

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"GuildFM/core/source"
	"GuildFM/core/utils"
	"GuildFM/logger"
)

// ProcessFetcher runs an external tool that writes media bytes to stdout.
type ProcessFetcher struct {
	Path string
	Args func(loc source.Locator) []string
}

// NewYTDLPFetcher 创建 yt-dlp 拉流器，cookies 文件存在时自动带上
func NewYTDLPFetcher(path, format string, cookies *source.CookieJar) *ProcessFetcher {
	if format == "" {
		format = "251/bestaudio"
	}
	return &ProcessFetcher{
		Path: path,
		Args: func(loc source.Locator) []string {
			args := append([]string{}, cookies.Args()...)
			return append(args,
				"--quiet", "--no-warnings",
				"-f", format,
				"-o", "-",
				"--no-playlist",
				"--", loc.URL,
			)
		},
	}
}

func (f *ProcessFetcher) Fetch(ctx context.Context, loc source.Locator) (*FetchStage, error) {
	var args []string
	if f.Args != nil {
		args = f.Args(loc)
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create fetch pipe: %w", err)
	}

	stderr := &utils.TailBuffer{Max: 2048}
	cmd := utils.NewCommand(exec.CommandContext(ctx, f.Path, args...))
	cmd.Stdout = w
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return nil, fmt.Errorf("start %s: %w", f.Path, err)
	}
	// 子进程持有写端，父进程关闭自己的副本才能在退出时读到 EOF
	w.Close()

	return &FetchStage{
		Output: r,
		cmd:    cmd,
		Wait: func() error {
			err := cmd.Wait()
			if err != nil && ctx.Err() == nil {
				logger.Debug("fetch process exited",
					logger.String("url", loc.URL),
					logger.Int("exitCode", utils.ExitCode(err)),
					logger.String("stderr", strings.TrimSpace(stderr.String())))
			}
			return err
		},
	}, nil
}

// ObjectOpener reads stored audio objects.
type ObjectOpener interface {
	OpenObject(ctx context.Context, key string) (io.ReadCloser, error)
}

// ObjectFetcher serves minio:// locators from the object store.
type ObjectFetcher struct {
	store ObjectOpener
}

// NewObjectFetcher 创建对象存储拉流器
func NewObjectFetcher(store ObjectOpener) *ObjectFetcher {
	return &ObjectFetcher{store: store}
}

func (f *ObjectFetcher) Fetch(ctx context.Context, loc source.Locator) (*FetchStage, error) {
	key := loc.ObjectKey()
	if key == "" {
		return nil, fmt.Errorf("invalid object locator %q", loc.URL)
	}
	rc, err := f.store.OpenObject(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", key, err)
	}
	return &FetchStage{Output: rc}, nil
}
