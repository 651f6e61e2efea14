// Package provider runs the external page audit for one measurement run.
package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/torosent/perfrun/internal/tracing"
)

// Provider audits target using the browser listening on port and returns the
// provider's JSON report verbatim.
type Provider interface {
	Audit(ctx context.Context, target string, port int) ([]byte, error)
}

// ErrEmptyReport is returned when the provider exits cleanly without output.
var ErrEmptyReport = errors.New("provider produced an empty report")

// Error describes a provider process that failed.
type Error struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("lighthouse exited with code %d", e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

const maxStderrBytes = 2048

// LighthouseConfig configures LighthouseCLI.
type LighthouseConfig struct {
	Path       string
	Categories []string
	ExtraArgs  []string
	Logger     *slog.Logger
}

// LighthouseCLI shells out to the lighthouse command-line tool.
type LighthouseCLI struct {
	path       string
	categories []string
	extraArgs  []string
	logger     *slog.Logger
}

func NewLighthouseCLI(cfg LighthouseConfig) *LighthouseCLI {
	path := cfg.Path
	if path == "" {
		path = "lighthouse"
	}
	categories := cfg.Categories
	if len(categories) == 0 {
		categories = []string{"performance"}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LighthouseCLI{
		path:       path,
		categories: categories,
		extraArgs:  cfg.ExtraArgs,
		logger:     logger,
	}
}

// Args returns the command line used to audit target against port.
func (l *LighthouseCLI) Args(target string, port int) []string {
	args := []string{
		target,
		"--port=" + strconv.Itoa(port),
		"--output=json",
		"--output-path=stdout",
		"--only-categories=" + strings.Join(l.categories, ","),
		"--quiet",
	}
	return append(args, l.extraArgs...)
}

func (l *LighthouseCLI) Audit(ctx context.Context, target string, port int) ([]byte, error) {
	cmd := exec.CommandContext(ctx, l.path, l.Args(target, port)...)
	cmd.WaitDelay = 2 * time.Second
	cmd.Env = tracing.InjectEnv(ctx, os.Environ())

	var stdout bytes.Buffer
	stderr := &limitedBuffer{limit: maxStderrBytes}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	l.logger.Debug("lighthouse finished", "target", target, "port", port, "duration", time.Since(start), "bytes", stdout.Len())

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("lighthouse: %w", ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &Error{
				ExitCode: exitErr.ExitCode(),
				Stderr:   strings.TrimSpace(stderr.String()),
				Err:      err,
			}
		}
		return nil, fmt.Errorf("run lighthouse: %w", err)
	}
	if len(bytes.TrimSpace(stdout.Bytes())) == 0 {
		return nil, ErrEmptyReport
	}
	return stdout.Bytes(), nil
}

// limitedBuffer keeps the last limit bytes written to it.
type limitedBuffer struct {
	limit int
	buf   []byte
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return string(b.buf)
}
