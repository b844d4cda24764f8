// Package runner executes skill scripts as subprocesses with a timeout, an
// output cap and optional environment redaction.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openskills/skillagent/pkg/logger"
	"github.com/openskills/skillagent/pkg/telemetry"
)

const (
	// DefaultTimeout applies when neither the script nor the caller sets one.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxOutputSize caps captured stdout.
	DefaultMaxOutputSize = 1024 * 1024

	truncationMarker = "\n... (output truncated)"
	sandboxMarkerEnv = "OPENSKILLS_SANDBOX"
)

var (
	// ErrTimeout is returned when a script outlives its timeout.
	ErrTimeout = errors.New("script execution timed out")
	// ErrUnsupportedScript is returned for file types without an interpreter.
	ErrUnsupportedScript = errors.New("unsupported script type")
)

// ExecutionError reports a script that ran and exited non-zero.
type ExecutionError struct {
	ExitCode int
	Stderr   string
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("script failed with exit code %d", e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// sensitiveEnv is removed from the child environment in sandbox mode.
var sensitiveEnv = []string{
	"AWS_SECRET_ACCESS_KEY",
	"AWS_SESSION_TOKEN",
	"GITHUB_TOKEN",
	"OPENAI_API_KEY",
	"ANTHROPIC_API_KEY",
	"DATABASE_URL",
	"DB_PASSWORD",
}

var defaultInterpreters = map[string][]string{
	".py":   {"python"},
	".sh":   {"/bin/bash"},
	".bash": {"/bin/bash"},
	".js":   {"node"},
	".ts":   {"npx", "ts-node"},
}

// Options controls a single run. Zero values fall back to runner defaults.
type Options struct {
	Timeout time.Duration
	// Sandbox defaults to true when nil.
	Sandbox *bool
	// Input is written to the script's stdin.
	Input string
	Args  []string
	Env   map[string]string
}

// SandboxEnabled resolves the sandbox flag.
func (o Options) SandboxEnabled() bool {
	return o.Sandbox == nil || *o.Sandbox
}

// Bool returns a pointer to b, for Options.Sandbox.
func Bool(b bool) *bool {
	return &b
}

// Config holds runner-wide settings, decodable from viper.
type Config struct {
	Timeout       time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
	MaxOutputSize int           `mapstructure:"max_output_size" json:"max_output_size" yaml:"max_output_size"`
}

// Runner executes scripts.
type Runner struct {
	timeout       time.Duration
	maxOutputSize int
	interpreters  map[string][]string
}

// Option configures a Runner.
type Option func(*Runner)

// WithDefaultTimeout sets the timeout used when Options.Timeout is zero.
func WithDefaultTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxOutputSize caps captured stdout in bytes.
func WithMaxOutputSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxOutputSize = n
		}
	}
}

// WithInterpreter registers or replaces the command used for an extension.
func WithInterpreter(ext string, command ...string) Option {
	return func(r *Runner) {
		r.interpreters[strings.ToLower(ext)] = command
	}
}

// WithConfig applies a Config.
func WithConfig(cfg Config) Option {
	return func(r *Runner) {
		WithDefaultTimeout(cfg.Timeout)(r)
		WithMaxOutputSize(cfg.MaxOutputSize)(r)
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		timeout:       DefaultTimeout,
		maxOutputSize: DefaultMaxOutputSize,
		interpreters:  make(map[string][]string, len(defaultInterpreters)),
	}
	for ext, cmd := range defaultInterpreters {
		r.interpreters[ext] = cmd
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the script at path and returns its captured stdout.
func (r *Runner) Run(ctx context.Context, path string, opts Options) (output string, err error) {
	ext := strings.ToLower(filepath.Ext(path))
	interpreter, ok := r.interpreters[ext]
	if !ok || len(interpreter) == 0 {
		return "", errors.Wrapf(ErrUnsupportedScript, "%q", ext)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}

	err = telemetry.WithSpan(ctx, "runner.run", func(ctx context.Context) error {
		output, err = r.run(ctx, interpreter, path, timeout, opts)
		return err
	},
		attribute.String("script.path", path),
		attribute.Bool("script.sandbox", opts.SandboxEnabled()),
		attribute.Int64("script.timeout_ms", timeout.Milliseconds()),
	)
	return output, err
}

func (r *Runner) run(ctx context.Context, interpreter []string, path string, timeout time.Duration, opts Options) (string, error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append(append([]string{}, interpreter[1:]...), path), opts.Args...)
	cmd := exec.CommandContext(execCtx, interpreter[0], args...)
	cmd.Dir = filepath.Dir(path)
	cmd.Env = buildEnv(os.Environ(), opts.Env, opts.SandboxEnabled())
	cmd.WaitDelay = time.Second
	setProcessGroup(cmd)
	setProcessGroupKill(cmd)

	if opts.Input != "" {
		cmd.Stdin = strings.NewReader(opts.Input)
	}

	stdout := &cappedBuffer{limit: r.maxOutputSize}
	stderr := &cappedBuffer{limit: r.maxOutputSize}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()
	log := logger.G(ctx).WithField(logger.FieldPath, path).WithField("duration", time.Since(start))

	if runErr != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			log.Debug("script timed out")
			return "", errors.Wrapf(ErrTimeout, "after %s", timeout)
		}
		if ctx.Err() != nil {
			return "", errors.Wrap(ctx.Err(), "script execution cancelled")
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			log.WithField("exit_code", exitErr.ExitCode()).Debug("script exited with error")
			return "", &ExecutionError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return "", errors.Wrap(runErr, "failed to start script")
	}

	out := stdout.String()
	if stdout.truncated {
		out += truncationMarker
	}
	log.WithField("bytes", len(out)).Debug("script finished")
	return out, nil
}

// buildEnv merges extra into base and, in sandbox mode, strips credentials.
func buildEnv(base []string, extra map[string]string, sandbox bool) []string {
	env := make(map[string]string, len(base)+len(extra)+1)
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	for k, v := range extra {
		env[k] = v
	}
	if sandbox {
		for _, k := range sensitiveEnv {
			delete(env, k)
		}
		env[sandboxMarkerEnv] = "1"
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// cappedBuffer keeps the first limit bytes written and discards the rest.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	remaining := b.limit - b.buf.Len()
	switch {
	case remaining <= 0:
		if len(p) > 0 {
			b.truncated = true
		}
	case len(p) > remaining:
		b.buf.Write(p[:remaining])
		b.truncated = true
	default:
		b.buf.Write(p)
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}
