package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func writeFakeChrome(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake browser uses a POSIX shell script")
	}
	path := filepath.Join(t.TempDir(), "fake-chrome")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func shortGrace(t *testing.T) {
	t.Helper()
	prev := closeGracePeriod
	closeGracePeriod = 200 * time.Millisecond
	t.Cleanup(func() { closeGracePeriod = prev })
}

func TestChromeLauncherLaunchAndClose(t *testing.T) {
	shortGrace(t)
	f := newFakeDevTools(t)
	host, port := f.hostPort(t)
	bin := writeFakeChrome(t, fmt.Sprintf(
		"echo 'some noise' >&2\necho 'DevTools listening on ws://%s:%d/devtools/browser/test' >&2\nexec sleep 30", host, port))

	launcher := NewChromeLauncher(ChromeConfig{Path: bin, StartupTimeout: 5 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := launcher.Launch(ctx)
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if s.Port() != port {
		t.Errorf("Port() = %d, want %d", s.Port(), port)
	}
	if err := s.Alive(ctx); err != nil {
		t.Errorf("Alive() error = %v", err)
	}

	cs := s.(*chromeSession)
	if cs.Version() != "HeadlessChrome/130.0.0.0" {
		t.Errorf("Version() = %q", cs.Version())
	}

	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if got := f.last.Load(); got != "Browser.close" {
		t.Errorf("last DevTools command = %v, want Browser.close", got)
	}
	if _, err := os.Stat(cs.profileDir); !os.IsNotExist(err) {
		t.Errorf("profile directory still present: %v", err)
	}

	err = s.Alive(ctx)
	if !errors.Is(err, ErrExited) {
		t.Errorf("Alive() after Close error = %v, want ErrExited", err)
	}
}

func TestChromeLauncherProcessExitsEarly(t *testing.T) {
	bin := writeFakeChrome(t, "echo 'cannot open display' >&2\nexit 3")

	launcher := NewChromeLauncher(ChromeConfig{Path: bin, StartupTimeout: 5 * time.Second})
	_, err := launcher.Launch(context.Background())

	var serr *Error
	if !errors.As(err, &serr) || serr.Op != "launch" {
		t.Fatalf("Launch() error = %v, want launch *Error", err)
	}
	if !errors.Is(err, ErrExited) {
		t.Errorf("Launch() error = %v, want ErrExited", err)
	}
	if !strings.Contains(err.Error(), "cannot open display") {
		t.Errorf("Launch() error = %q, want stderr tail", err.Error())
	}
}

func TestChromeLauncherStartupTimeout(t *testing.T) {
	shortGrace(t)
	bin := writeFakeChrome(t, "exec sleep 30")

	launcher := NewChromeLauncher(ChromeConfig{Path: bin, StartupTimeout: 300 * time.Millisecond})
	start := time.Now()
	_, err := launcher.Launch(context.Background())
	if err == nil {
		t.Fatal("Launch() error = nil, want timeout")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Launch() error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Launch() took %s, want prompt failure", elapsed)
	}
}

func TestChromeLauncherMissingBinary(t *testing.T) {
	launcher := NewChromeLauncher(ChromeConfig{Path: filepath.Join(t.TempDir(), "does-not-exist")})
	_, err := launcher.Launch(context.Background())
	var serr *Error
	if !errors.As(err, &serr) {
		t.Fatalf("Launch() error = %v, want *Error", err)
	}
}

func TestResolveChromePathPrefersConfigured(t *testing.T) {
	t.Setenv("CHROME_PATH", "/from/env")
	got, err := ResolveChromePath("/configured/chrome")
	if err != nil || got != "/configured/chrome" {
		t.Errorf("ResolveChromePath() = %q, %v", got, err)
	}
	got, err = ResolveChromePath("")
	if err != nil || got != "/from/env" {
		t.Errorf("ResolveChromePath(\"\") = %q, %v, want /from/env", got, err)
	}
}
