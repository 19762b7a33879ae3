package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"GuildFM/core/source"
	"GuildFM/core/utils"
	"GuildFM/logger"
)

// Pipeline chains a fetch stage into a transcode process and exposes the
// transcoder's stdout as a ByteStream.
type Pipeline struct {
	fetchers   map[source.Kind]Fetcher
	transcoder Transcoder
}

// NewPipeline 创建播放流水线
func NewPipeline(transcoder Transcoder, remote Fetcher) *Pipeline {
	p := &Pipeline{
		fetchers:   make(map[source.Kind]Fetcher),
		transcoder: transcoder,
	}
	if remote != nil {
		p.fetchers[source.KindRemote] = remote
	}
	return p
}

// WithFetcher registers the fetch stage used for locators of the given kind.
func (p *Pipeline) WithFetcher(kind source.Kind, f Fetcher) *Pipeline {
	p.fetchers[kind] = f
	return p
}

// Open spawns both stages. The returned stream owns them: Close terminates
// both processes and waits for them to exit.
func (p *Pipeline) Open(ctx context.Context, loc source.Locator) (ByteStream, error) {
	fetcher, ok := p.fetchers[loc.Kind]
	if !ok {
		return nil, &StreamError{Stage: "fetch", Err: fmt.Errorf("no fetcher for %q locators", loc.Kind)}
	}

	ctx, cancel := context.WithCancel(ctx)

	fetch, err := fetcher.Fetch(ctx, loc)
	if err != nil {
		cancel()
		return nil, &StreamError{Stage: "fetch", Err: err}
	}

	inR, inW, err := os.Pipe()
	if err != nil {
		cancel()
		fetch.Output.Close()
		waitFetch(fetch)
		return nil, &StreamError{Stage: "transcode", Err: err}
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		cancel()
		inR.Close()
		inW.Close()
		fetch.Output.Close()
		waitFetch(fetch)
		return nil, &StreamError{Stage: "transcode", Err: err}
	}

	stderr := &utils.TailBuffer{Max: 2048}
	cmd := p.transcoder.command(ctx)
	cmd.Stdin = inR
	cmd.Stdout = outW
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		inR.Close()
		inW.Close()
		outR.Close()
		outW.Close()
		fetch.Output.Close()
		waitFetch(fetch)
		return nil, &StreamError{Stage: "transcode", Err: fmt.Errorf("start %s: %w", p.transcoder.Path, err)}
	}
	// 子进程已继承这两端
	inR.Close()
	outW.Close()

	s := &Stream{
		locator:   loc,
		out:       outR,
		fetch:     fetch,
		transcode: cmd,
		cancel:    cancel,
		errCh:     make(chan error, 1),
	}
	s.wg.Add(2)
	go s.forward(inW)
	go s.waitTranscoder(stderr)

	logger.Debug("pipeline opened", logger.String("url", loc.URL), logger.String("kind", string(loc.Kind)))
	return s, nil
}

func waitFetch(fetch *FetchStage) {
	if fetch.Wait != nil {
		_ = fetch.Wait()
	}
}

// Stream is a live PCM stream backed by a fetch stage and a transcoder process.
type Stream struct {
	locator   source.Locator
	out       *os.File
	fetch     *FetchStage
	transcode *exec.Cmd
	cancel    context.CancelFunc

	delivered atomic.Int64
	closing   atomic.Bool

	errCh   chan error
	errOnce sync.Once

	closeOnce sync.Once
	wg        sync.WaitGroup
}

func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.out.Read(p)
	if err != nil && s.closing.Load() && errors.Is(err, os.ErrClosed) {
		return n, io.EOF
	}
	return n, err
}

// Err delivers the first non-broken-pipe failure of either stage.
func (s *Stream) Err() <-chan error {
	return s.errCh
}

// Close kills both stages and waits until they have exited.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.cancel()
		s.out.Close()
		s.fetch.Output.Close()
		s.wg.Wait()
	})
	return nil
}

func (s *Stream) report(stage string, err error) {
	if s.closing.Load() || isBrokenPipe(err) {
		logger.Debug("pipeline error ignored during teardown",
			logger.String("stage", stage), logger.ErrorField(err))
		return
	}
	s.errOnce.Do(func() {
		serr := &StreamError{Stage: stage, Err: err}
		logger.Warn("stream error", logger.String("url", s.locator.URL), logger.ErrorField(serr))
		s.errCh <- serr
	})
}

// forward copies fetched bytes into the transcoder's stdin. Closing stdin
// tells the transcoder the input is complete.
func (s *Stream) forward(stdin *os.File) {
	defer s.wg.Done()

	n, err := io.Copy(stdin, s.fetch.Output)
	s.delivered.Store(n)
	s.fetch.Output.Close()

	// 错误必须在转码器读到 EOF 之前入队，否则播放端可能先正常结束
	if err != nil {
		s.report("fetch", err)
	} else if n == 0 && s.fetch.Wait != nil {
		werr := s.fetch.Wait()
		if werr != nil && !s.closing.Load() {
			s.report("fetch", fmt.Errorf("exited with code %d before producing data", utils.ExitCode(werr)))
		}
		stdin.Close()
		return
	}
	stdin.Close()

	if s.fetch.Wait != nil {
		_ = s.fetch.Wait()
	}
}

func (s *Stream) waitTranscoder(stderr *utils.TailBuffer) {
	defer s.wg.Done()

	err := s.transcode.Wait()
	if err == nil || s.closing.Load() {
		return
	}
	// 退出码仅用于诊断
	logger.Debug("transcoder exited",
		logger.String("url", s.locator.URL),
		logger.Int("exitCode", utils.ExitCode(err)),
		logger.Int64("bytesIn", s.delivered.Load()),
		logger.String("stderr", strings.TrimSpace(stderr.String())))
}
