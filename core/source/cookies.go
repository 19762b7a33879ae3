package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"GuildFM/logger"

	"github.com/fsnotify/fsnotify"
)

// CookieJar tracks whether the yt-dlp cookies file exists and supplies the
// matching command-line arguments. The file may be added or replaced while
// the bot runs.
type CookieJar struct {
	path    string
	present atomic.Bool

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// NewCookieJar 创建 cookies 文件状态跟踪器，path 为空时不传 --cookies
func NewCookieJar(path string) *CookieJar {
	j := &CookieJar{path: path, done: make(chan struct{})}
	j.refresh()
	return j
}

// Args returns the yt-dlp arguments for the cookies file, or nil.
func (j *CookieJar) Args() []string {
	if j == nil || !j.present.Load() {
		return nil
	}
	return []string{"--cookies", j.path}
}

// Present reports whether the cookies file currently exists.
func (j *CookieJar) Present() bool {
	return j != nil && j.present.Load()
}

func (j *CookieJar) refresh() bool {
	if j.path == "" {
		j.present.Store(false)
		return false
	}
	info, err := os.Stat(j.path)
	ok := err == nil && !info.IsDir()
	j.present.Store(ok)
	return ok
}

// Watch 监听 cookies 文件所在目录，文件出现或消失时更新状态
func (j *CookieJar) Watch() error {
	if j.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听器失败: %w", err)
	}
	dir := filepath.Dir(j.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("监听目录失败: %w", err)
	}
	j.watcher = watcher

	go j.loop()
	return nil
}

func (j *CookieJar) loop() {
	defer close(j.done)
	target := filepath.Clean(j.path)
	for {
		select {
		case event, ok := <-j.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			before := j.present.Load()
			if now := j.refresh(); now != before {
				logger.Info("cookies file changed",
					logger.String("path", j.path), logger.Bool("present", now))
			}
		case err, ok := <-j.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("cookies watcher error", logger.ErrorField(err))
		}
	}
}

// Close 停止监听
func (j *CookieJar) Close() error {
	var err error
	j.once.Do(func() {
		if j.watcher == nil {
			close(j.done)
			return
		}
		err = j.watcher.Close()
		<-j.done
	})
	return err
}
