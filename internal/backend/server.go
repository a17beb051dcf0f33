package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"
)

// ServerManager manages server processes.
type ServerManager struct {
	servers      map[string]*ServerProcess
	client       *http.Client
	pollInterval time.Duration
	mu           sync.RWMutex
}

// ServerProcess represents a server running process.
type ServerProcess struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	exited chan struct{}
}

// ServerConfig defines how to start and check a backend server.
type ServerConfig struct {
	Env          map[string]string
	Name         string
	BinPath      string
	HealthPath   string
	Args         []string
	Port         int
	ReadyTimeout time.Duration
}

// NewServerManager initializes a ServerManager.
func NewServerManager() *ServerManager {
	return &ServerManager{
		servers:      map[string]*ServerProcess{},
		client:       &http.Client{Timeout: 1 * time.Second},
		pollInterval: 1 * time.Second,
	}
}

func serverKey(name string, port int) string {
	return fmt.Sprintf("%s-%d", name, port)
}

// Running reports whether a server with this name and port was started and
// has not exited.
func (sm *ServerManager) Running(name string, port int) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	srv, ok := sm.servers[serverKey(name, port)]
	if !ok {
		return false
	}

	select {
	case <-srv.exited:
		return false
	default:
		return true
	}
}

// StartServer starts a backend server based on a generic configuration.
// Starting a server that is already running is a no-op.
func (sm *ServerManager) StartServer(ctx context.Context, cfg ServerConfig) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	key := serverKey(cfg.Name, cfg.Port)
	if srv, exists := sm.servers[key]; exists {
		select {
		case <-srv.exited:
			delete(sm.servers, key)
		default:
			return nil
		}
	}

	binPath, err := exec.LookPath(cfg.BinPath)
	if err != nil {
		return fmt.Errorf("failed to start %s server: %w", cfg.Name, err)
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, binPath, cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start %s server: %w", cfg.Name, err)
	}

	srv := &ServerProcess{cmd: cmd, cancel: cancel, exited: make(chan struct{})}
	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Warn("Server process exited", "name", cfg.Name, "port", cfg.Port, "error", err)
		}
		close(srv.exited)
	}()

	healthPath := cfg.HealthPath
	if healthPath == "" {
		healthPath = "/health"
	}

	timeout := cfg.ReadyTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	url := fmt.Sprintf("http://127.0.0.1:%d%s", cfg.Port, healthPath)
	if err := sm.waitForServer(ctx, url, timeout, srv.exited); err != nil {
		cancel()
		<-srv.exited
		return fmt.Errorf("%s server did not become ready: %w", cfg.Name, err)
	}

	sm.servers[key] = srv

	slog.Info("Server started", "name", cfg.Name, "port", cfg.Port)
	return nil
}

// StopServer terminates a backend server.
func (sm *ServerManager) StopServer(name string, port int) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	key := serverKey(name, port)
	srv, exists := sm.servers[key]
	if !exists {
		return fmt.Errorf("server %s not found", key)
	}

	srv.cancel()
	<-srv.exited

	delete(sm.servers, key)
	slog.Info("Server stopped", "name", name, "port", port)
	return nil
}

// StopAll terminates all running servers.
func (sm *ServerManager) StopAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, srv := range sm.servers {
		srv.cancel()
		<-srv.exited
	}
	sm.servers = map[string]*ServerProcess{}

	slog.Info("All servers stopped")
}

// waitForServer polls url until it answers 200, the process exits, the
// context ends or the timeout elapses.
func (sm *ServerManager) waitForServer(ctx context.Context, url string, timeout time.Duration, exited <-chan struct{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(sm.pollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := sm.client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-exited:
			return fmt.Errorf("server process exited before becoming ready")
		case <-ctx.Done():
			return fmt.Errorf("server failed to respond at %s within %v: %w", url, timeout, ctx.Err())
		case <-ticker.C:
		}
	}
}
