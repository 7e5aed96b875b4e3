package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// SpawnOptions configures the engine that launches its own llama-server.
type SpawnOptions struct {
	Bin            string
	Host           string
	PortStart      int
	PortEnd        int
	GPULayers      int
	ExtraArgs      []string
	ReadyTimeout   time.Duration
	RequestTimeout time.Duration
	Logger         *zerolog.Logger
	Publisher      EventPublisher
}

// llamaSubprocessEngine owns a spawned llama-server process and delegates
// sessions to a llamaServerEngine pointed at it.
type llamaSubprocessEngine struct {
	*llamaServerEngine

	mu        sync.Mutex
	cmd       *exec.Cmd
	pid       int
	exited    chan struct{}
	log       zerolog.Logger
	publisher EventPublisher
}

// NewLlamaSubprocessEngine returns an EngineFactory that spawns llama-server
// for the model and waits until it answers /v1/models.
func NewLlamaSubprocessEngine(so SpawnOptions) EngineFactory {
	return func(opts EngineOptions) (Engine, error) {
		if strings.TrimSpace(opts.ModelPath) == "" {
			return nil, errors.New("model path is empty")
		}
		if strings.TrimSpace(so.Bin) == "" {
			return nil, ErrDependencyUnavailable("llama-server binary not configured")
		}
		return spawnLlamaServer(so, opts)
	}
}

func spawnLlamaServer(so SpawnOptions, opts EngineOptions) (*llamaSubprocessEngine, error) {
	log := zerolog.Nop()
	if so.Logger != nil {
		log = *so.Logger
	}
	log = log.With().Str("adapter", "llama_subprocess").Logger()
	pub := so.Publisher
	if pub == nil {
		pub = noopPublisher{}
	}
	host := strings.TrimSpace(so.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	var port int
	var err error
	if so.PortStart > 0 && so.PortEnd >= so.PortStart {
		port, err = pickPortInRange(host, so.PortStart, so.PortEnd)
	} else {
		port, err = pickFreePort(host)
	}
	if err != nil {
		return nil, err
	}
	baseURL := fmt.Sprintf("http://%s:%d", host, port)

	args := []string{"-m", opts.ModelPath, "--host", host, "--port", strconv.Itoa(port)}
	if opts.ContextSize > 0 {
		args = append(args, "-c", strconv.Itoa(opts.ContextSize))
	}
	if so.GPULayers > 0 {
		args = append(args, "-ngl", strconv.Itoa(so.GPULayers))
	}
	if opts.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(opts.Threads))
	}
	args = append(args, so.ExtraArgs...)

	cmd := exec.Command(so.Bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start llama-server: %w", err)
	}
	pid := cmd.Process.Pid
	log.Info().Str("event", "spawn_start").Str("model", opts.ModelPath).Int("pid", pid).Str("url", baseURL).Msg("llama-server started")
	pub.Publish(LifecycleEvent{Name: "spawn_start", Fields: map[string]any{"pid": pid, "url": baseURL}})

	e := &llamaSubprocessEngine{
		llamaServerEngine: newLlamaServerEngine(ServerOptions{BaseURL: baseURL, RequestTimeout: so.RequestTimeout, Logger: so.Logger}, opts),
		cmd:               cmd,
		pid:               pid,
		exited:            make(chan struct{}),
		log:               log,
		publisher:         pub,
	}
	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(e.exited)
	}()

	ready := so.ReadyTimeout
	if ready <= 0 {
		ready = 30 * time.Second
	}
	deadline := time.Now().Add(ready)
	for {
		if time.Now().After(deadline) {
			_ = e.Close()
			pub.Publish(LifecycleEvent{Name: "spawn_timeout", Fields: map[string]any{"pid": pid}})
			return nil, fmt.Errorf("llama-server not ready in time: %s", baseURL)
		}
		select {
		case werr := <-waitErr:
			tail := stderr.String()
			if len(tail) > 4096 {
				tail = tail[len(tail)-4096:]
			}
			log.Error().Str("event", "spawn_exit").Int("pid", pid).AnErr("wait", werr).Msg("llama-server exited before ready")
			pub.Publish(LifecycleEvent{Name: "spawn_exit", Fields: map[string]any{"pid": pid, "before_ready": true}})
			return nil, fmt.Errorf("llama-server exited early: %v; stderr tail: %s", werr, tail)
		default:
		}
		if e.healthy(time.Second) {
			log.Info().Str("event", "spawn_ready").Int("pid", pid).Str("url", baseURL).Msg("llama-server ready")
			pub.Publish(LifecycleEvent{Name: "spawn_ready", Fields: map[string]any{"pid": pid, "url": baseURL}})
			return e, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// healthy checks that the server responds OK to /v1/models.
func (e *llamaSubprocessEngine) healthy(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// PID returns the process id of the spawned server, or 0 once stopped.
func (e *llamaSubprocessEngine) PID() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pid
}

// Close terminates the server: SIGTERM first, then kill after two seconds.
func (e *llamaSubprocessEngine) Close() error {
	e.mu.Lock()
	cmd := e.cmd
	e.cmd, e.pid = nil, 0
	e.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	_ = e.llamaServerEngine.Close()
	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-e.exited:
	case <-time.After(2 * time.Second):
		_ = cmd.Process.Kill()
		<-e.exited
	}
	e.log.Info().Str("event", "spawn_stop").Int("pid", cmd.Process.Pid).Msg("llama-server stopped")
	e.publisher.Publish(LifecycleEvent{Name: "spawn_stop", Fields: map[string]any{"pid": cmd.Process.Pid}})
	return nil
}

func pickPortInRange(host string, start, end int) (int, error) {
	for p := start; p <= end; p++ {
		l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err != nil {
			continue
		}
		_ = l.Close()
		return p, nil
	}
	return 0, fmt.Errorf("no free port in range %d-%d", start, end)
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	_, p, err := net.SplitHostPort(l.Addr().String())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(p)
}
