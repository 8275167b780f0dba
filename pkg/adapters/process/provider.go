// Package process implements the provider ports by running an external program, so that
// metric tables living in another runtime (a Python notebook environment, a parquet
// reader) can feed the engine without a server.
//
// Every call starts the command once. The request is written to stdin as
//
//	{"op": "groups" | "population" | "values", "request": {...}}
//
// and the program answers on stdout with the same JSON bodies as the HTTP data service:
// {"groups": [...]}, {"feature_ids": [...]} or {"values": {"<id>": v}}.
// A non-zero exit status fails the call; stderr is quoted in the error.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/gnueaj/SAE-vis-sub000/internal/logging"
	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
)

// DefaultTimeout bounds a single invocation.
const DefaultTimeout = time.Minute

// maxStderr caps how much of stderr is quoted in an error.
const maxStderr = 512

const (
	OpGroups     = "groups"
	OpPopulation = "population"
	OpValues     = "values"
)

// Provider runs Command with Args for every provider call.
type Provider struct {
	command string
	args    []string
	dir     string
	env     map[string]string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithArgs sets the fixed arguments of the command.
func WithArgs(args ...string) Option {
	return func(p *Provider) {
		p.args = args
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) Option {
	return func(p *Provider) {
		p.dir = dir
	}
}

// WithEnv adds environment variables on top of the current environment.
func WithEnv(env map[string]string) Option {
	return func(p *Provider) {
		p.env = env
	}
}

// WithTimeout bounds each invocation. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the provider logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// New creates a provider backed by command.
func New(command string, opts ...Option) *Provider {
	p := &Provider{
		command: command,
		timeout: DefaultTimeout,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Request is what the program reads from stdin.
type Request struct {
	Op      string          `json:"op"`
	Request json.RawMessage `json:"request"`
}

type groupsResponse struct {
	Groups []domain.MetricGroup `json:"groups"`
}

type populationRequest struct {
	Filter domain.FilterSpec `json:"filters"`
}

type populationResponse struct {
	IDs []int `json:"feature_ids"`
}

type valuesRequest struct {
	Metric string `json:"metric"`
	IDs    []int  `json:"feature_ids"`
}

type valuesResponse struct {
	Values map[int]float64 `json:"values"`
}

// Groups implements ports.MetricGroupProvider.
func (p *Provider) Groups(ctx context.Context, req domain.GroupRequest) ([]domain.MetricGroup, error) {
	var resp groupsResponse
	if err := p.call(ctx, OpGroups, req, &resp); err != nil {
		return nil, err
	}
	return resp.Groups, nil
}

// Population implements ports.MetricGroupProvider.
func (p *Provider) Population(ctx context.Context, filter domain.FilterSpec) ([]int, error) {
	var resp populationResponse
	if err := p.call(ctx, OpPopulation, populationRequest{Filter: filter}, &resp); err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

// Values implements ports.MetricValueSource.
func (p *Provider) Values(ctx context.Context, metric string, ids []int) (map[int]float64, error) {
	var resp valuesResponse
	if err := p.call(ctx, OpValues, valuesRequest{Metric: metric, IDs: ids}, &resp); err != nil {
		return nil, err
	}
	if resp.Values == nil {
		resp.Values = map[int]float64{}
	}
	return resp.Values, nil
}

func (p *Provider) call(ctx context.Context, op string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	stdin, err := json.Marshal(Request{Op: op, Request: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.command, p.args...)
	cmd.Dir = p.dir
	cmd.Env = cmd.Environ()
	for k, v := range p.env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Env = append(cmd.Env, "SAEVIS_OP="+op)

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxStderr {
			msg = msg[:maxStderr]
		}
		return fmt.Errorf("%s %s: %w: %s", p.command, op, err, msg)
	}
	p.logger.Debug("process call", "command", p.command, "op", op, "duration", time.Since(start))

	if err := json.Unmarshal(stdout.Bytes(), out); err != nil {
		return fmt.Errorf("%s %s: failed to decode output: %w", p.command, op, err)
	}
	return nil
}
