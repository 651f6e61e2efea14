package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultStartupTimeout = 30 * time.Second
	stderrTailLines       = 20
)

// closeGracePeriod bounds how long Close waits for a clean exit before
// killing the browser.
var closeGracePeriod = 3 * time.Second

var chromeCandidates = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
}

// defaultChromeFlags mirror chrome-launcher's headless defaults that matter
// for repeatable audits.
var defaultChromeFlags = []string{
	"--headless",
	"--no-first-run",
	"--no-default-browser-check",
	"--disable-background-networking",
	"--disable-default-apps",
	"--disable-extensions",
	"--disable-sync",
	"--mute-audio",
}

const devtoolsBanner = "DevTools listening on "

// ChromeConfig configures ChromeLauncher.
type ChromeConfig struct {
	Path           string
	Flags          []string
	StartupTimeout time.Duration
	Logger         *slog.Logger
}

// ChromeLauncher starts a fresh headless Chrome with its own profile
// directory for every Launch.
type ChromeLauncher struct {
	cfg    ChromeConfig
	client *http.Client
	logger *slog.Logger
}

// NewChromeLauncher creates a launcher. The binary is resolved lazily so a
// missing Chrome surfaces as a session error on the first run.
func NewChromeLauncher(cfg ChromeConfig) *ChromeLauncher {
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = defaultStartupTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ChromeLauncher{
		cfg:    cfg,
		client: newHTTPClient(5 * time.Second),
		logger: logger,
	}
}

// ResolveChromePath returns the configured binary, $CHROME_PATH, or the first
// known Chrome/Chromium name found in PATH.
func ResolveChromePath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if env := os.Getenv("CHROME_PATH"); env != "" {
		return env, nil
	}
	for _, name := range chromeCandidates {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", errors.New("no Chrome or Chromium binary found (set --chrome-path or CHROME_PATH)")
}

// Launch starts Chrome and waits until its DevTools endpoint answers.
func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	path, err := ResolveChromePath(l.cfg.Path)
	if err != nil {
		return nil, &Error{Op: "launch", Err: err}
	}

	profileDir, err := os.MkdirTemp("", "perfrun-chrome-*")
	if err != nil {
		return nil, &Error{Op: "launch", Err: fmt.Errorf("create profile directory: %w", err)}
	}

	args := append([]string{}, defaultChromeFlags...)
	args = append(args, l.cfg.Flags...)
	args = append(args,
		"--remote-debugging-port=0",
		"--user-data-dir="+profileDir,
		"about:blank",
	)

	// The process must outlive ctx, which only bounds startup.
	cmd := exec.Command(path, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		os.RemoveAll(profileDir)
		return nil, &Error{Op: "launch", Err: err}
	}
	if err := cmd.Start(); err != nil {
		os.RemoveAll(profileDir)
		return nil, &Error{Op: "launch", Err: fmt.Errorf("start %s: %w", path, err)}
	}

	s := &chromeSession{
		cmd:        cmd,
		profileDir: profileDir,
		client:     l.client,
		exited:     make(chan struct{}),
		logger:     l.logger,
	}
	banner := make(chan string, 1)
	go s.watch(stderr, banner)

	startCtx, cancel := context.WithTimeout(ctx, l.cfg.StartupTimeout)
	defer cancel()

	if err := s.awaitDevTools(startCtx, banner); err != nil {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), closeGracePeriod)
		defer closeCancel()
		_ = s.Close(closeCtx)
		return nil, &Error{Op: "launch", Err: err}
	}

	l.logger.Debug("browser launched", "pid", cmd.Process.Pid, "port", s.port, "browser", s.Version())
	return s, nil
}

type chromeSession struct {
	cmd        *exec.Cmd
	profileDir string
	client     *http.Client
	logger     *slog.Logger

	host    string
	port    int
	version VersionInfo

	exited  chan struct{}
	waitErr error

	tailMu sync.Mutex
	tail   []string

	closeOnce sync.Once
	closeErr  error
}

func (s *chromeSession) Port() int {
	return s.port
}

// Version returns the browser product string reported by DevTools.
func (s *chromeSession) Version() string {
	return s.version.Browser
}

// watch drains stderr, forwards the DevTools banner once, keeps a short tail
// for diagnostics and reaps the process when the pipe closes.
func (s *chromeSession) watch(stderr io.Reader, banner chan<- string) {
	sent := false
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		if !sent {
			if idx := strings.Index(line, devtoolsBanner); idx >= 0 {
				banner <- strings.TrimSpace(line[idx+len(devtoolsBanner):])
				sent = true
				continue
			}
		}
		s.tailMu.Lock()
		s.tail = append(s.tail, line)
		if len(s.tail) > stderrTailLines {
			s.tail = s.tail[len(s.tail)-stderrTailLines:]
		}
		s.tailMu.Unlock()
	}
	_, _ = io.Copy(io.Discard, stderr)
	s.waitErr = s.cmd.Wait()
	close(s.exited)
}

func (s *chromeSession) stderrTail() string {
	s.tailMu.Lock()
	defer s.tailMu.Unlock()
	return strings.Join(s.tail, "\n")
}

func (s *chromeSession) awaitDevTools(ctx context.Context, banner <-chan string) error {
	var wsURL string
	select {
	case wsURL = <-banner:
	case <-s.exited:
		return fmt.Errorf("%w before DevTools was ready: %v\n%s", ErrExited, s.waitErr, s.stderrTail())
	case <-ctx.Done():
		return fmt.Errorf("waiting for DevTools endpoint: %w", ctx.Err())
	}

	host, port, err := parseDevToolsURL(wsURL)
	if err != nil {
		return err
	}
	s.host, s.port = host, port

	info, err := fetchVersion(ctx, s.client, host, port)
	if err != nil {
		return err
	}
	s.version = info
	return nil
}

func parseDevToolsURL(raw string) (string, int, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, fmt.Errorf("parse DevTools URL %q: %w", raw, err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return "", 0, fmt.Errorf("parse DevTools URL %q: %w", raw, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return "", 0, fmt.Errorf("parse DevTools URL %q: invalid port", raw)
	}
	return host, port, nil
}

func (s *chromeSession) Alive(ctx context.Context) error {
	select {
	case <-s.exited:
		return &Error{Op: "probe", Err: ErrExited}
	default:
	}
	if _, err := fetchVersion(ctx, s.client, s.host, s.port); err != nil {
		return &Error{Op: "probe", Err: err}
	}
	return nil
}

// Close asks the browser to exit over DevTools, kills it if it is still
// running after the grace period and removes the profile directory.
func (s *chromeSession) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.shutdown(ctx)
	})
	return s.closeErr
}

func (s *chromeSession) shutdown(ctx context.Context) error {
	select {
	case <-s.exited:
	default:
		if s.version.WebSocketDebuggerURL != "" {
			callCtx, cancel := context.WithTimeout(ctx, closeGracePeriod)
			conn := newCDPConn(s.version.WebSocketDebuggerURL, time.Second)
			if err := conn.Connect(callCtx); err == nil {
				if _, err := conn.Call(callCtx, "Browser.close", nil); err != nil {
					s.logger.Debug("Browser.close failed", "error", err)
				}
				_ = conn.Close()
			}
			cancel()
		}

		grace := time.NewTimer(closeGracePeriod)
		defer grace.Stop()
		select {
		case <-s.exited:
		case <-grace.C:
			_ = s.cmd.Process.Kill()
			<-s.exited
		case <-ctx.Done():
			_ = s.cmd.Process.Kill()
			<-s.exited
		}
	}

	if err := os.RemoveAll(s.profileDir); err != nil {
		return &Error{Op: "close", Err: fmt.Errorf("remove profile directory: %w", err)}
	}
	return nil
}
