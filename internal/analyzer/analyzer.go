// Package analyzer runs the external packet-analysis and network-scan engines as child processes
// and decodes their JSON reports.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"cyber-monitor/backend/internal/metrics"
)

// Engine names an external analysis program.
type Engine string

const (
	PacketAnalyzer Engine = "packet-analyzer"
	NetworkScanner Engine = "network-scanner"
)

const (
	// DefaultTimeout bounds one engine run.
	DefaultTimeout = 2 * time.Minute
	// DefaultMaxOutputBytes caps each captured output stream.
	DefaultMaxOutputBytes = 16 << 20

	waitDelay   = 2 * time.Second
	maxRawBytes = 4 << 10
)

// Config selects the interpreter and the script for each engine.
type Config struct {
	// Python is the interpreter binary (e.g. python3).
	Python string
	// Scripts maps each engine to the script passed as the interpreter's first argument.
	Scripts        map[Engine]string
	Timeout        time.Duration
	MaxOutputBytes int64
}

// Output is the result of a successful run.
type Output struct {
	Engine   Engine
	JSON     json.RawMessage
	Stderr   string
	Duration time.Duration
}

// Adapter runs engines. It holds no per-run state and is safe for concurrent use.
type Adapter struct {
	cfg     Config
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// New returns an adapter for cfg. m may be nil.
func New(cfg Config, m *metrics.Metrics, log zerolog.Logger) *Adapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = DefaultMaxOutputBytes
	}
	return &Adapter{cfg: cfg, metrics: m, log: log.With().Str("component", "analyzer").Logger()}
}

// Run executes engine with args and returns its parsed JSON stdout. Timeouts kill the process group
// and return an *AnalyzerError of kind TimedOut; cancellation of ctx kills the child and returns ctx.Err().
func (a *Adapter) Run(ctx context.Context, engine Engine, args []string, stdin io.Reader) (*Output, error) {
	script, ok := a.cfg.Scripts[engine]
	if !ok || script == "" {
		return nil, fmt.Errorf("analyzer: engine %q not configured", engine)
	}

	runCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, a.cfg.Python, append([]string{script}, args...)...)
	configureProcess(cmd)
	cmd.WaitDelay = waitDelay
	stdout := &cappedBuffer{limit: a.cfg.MaxOutputBytes}
	stderr := &cappedBuffer{limit: a.cfg.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if stdin != nil {
		cmd.Stdin = stdin
	}

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	out, err := a.interpret(ctx, runCtx, engine, runErr, stdout, stderr)
	result := "ok"
	var ae *AnalyzerError
	switch {
	case errors.As(err, &ae):
		result = string(ae.Kind)
	case err != nil:
		result = "canceled"
	}
	a.metrics.AnalyzerRun(string(engine), result, elapsed)

	logEv := a.log.Debug()
	if err != nil {
		logEv = a.log.Warn().Err(err)
	}
	logEv.Str("engine", string(engine)).Dur("duration", elapsed).Str("result", result).Msg("engine run finished")

	if err != nil {
		return nil, err
	}
	out.Duration = elapsed
	return out, nil
}

func (a *Adapter) interpret(ctx, runCtx context.Context, engine Engine, runErr error, stdout, stderr *cappedBuffer) (*Output, error) {
	if runErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, &AnalyzerError{Kind: TimedOut, Engine: engine, ExitCode: -1, Stderr: stderr.String(), Err: runCtx.Err()}
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			msg := stderr.String()
			if msg == "" {
				msg = reportedError(stdout.Bytes())
			}
			return nil, &AnalyzerError{Kind: EngineFailure, Engine: engine, ExitCode: exitErr.ExitCode(), Stderr: msg, Err: runErr}
		}
		return nil, &AnalyzerError{Kind: EngineFailure, Engine: engine, ExitCode: -1, Err: runErr}
	}

	body := bytes.TrimSpace(stdout.Bytes())
	if stdout.truncated || !json.Valid(body) {
		return nil, &AnalyzerError{Kind: MalformedOutput, Engine: engine, Raw: rawPrefix(body), Stderr: stderr.String()}
	}
	if msg := reportedError(body); msg != "" {
		return nil, &AnalyzerError{Kind: EngineFailure, Engine: engine, ExitCode: 0, Stderr: msg}
	}
	return &Output{Engine: engine, JSON: json.RawMessage(body), Stderr: stderr.String()}, nil
}

// reportedError returns the message of an {"error": "..."} object, or "".
func reportedError(body []byte) string {
	var envelope struct {
		Error any `json:"error"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(body), &envelope); err != nil || envelope.Error == nil {
		return ""
	}
	if s, ok := envelope.Error.(string); ok {
		return s
	}
	return fmt.Sprint(envelope.Error)
}

func rawPrefix(b []byte) string {
	if len(b) > maxRawBytes {
		b = b[:maxRawBytes]
	}
	return string(b)
}

// cappedBuffer keeps at most limit bytes and silently discards the rest so the child never blocks on a full pipe.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	room := c.limit - int64(c.buf.Len())
	switch {
	case room <= 0:
		c.truncated = c.truncated || len(p) > 0
	case int64(len(p)) > room:
		c.buf.Write(p[:room])
		c.truncated = true
	default:
		c.buf.Write(p)
	}
	return len(p), nil
}

func (c *cappedBuffer) Bytes() []byte { return c.buf.Bytes() }

func (c *cappedBuffer) String() string { return string(bytes.TrimSpace(c.buf.Bytes())) }
