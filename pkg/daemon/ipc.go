package daemon

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"
)

// Control commands accepted on the socket.
const (
	CmdStatus   = "STATUS"
	CmdToggle   = "TOGGLE"
	CmdShow     = "SHOW"
	CmdHide     = "HIDE"
	CmdFlash    = "FLASH"
	CmdRedraw   = "REDRAW"
	CmdShutdown = "SHUTDOWN"
	CmdQuit     = "QUIT"
)

// Commands lists every control command.
var Commands = []string{CmdStatus, CmdToggle, CmdShow, CmdHide, CmdFlash, CmdRedraw, CmdShutdown, CmdQuit}

// ErrUnknownCommand is returned by handlers for commands they do not
// implement.
var ErrUnknownCommand = errors.New("unknown command")

// IPCHandler executes one control command and returns a JSON response.
type IPCHandler interface {
	HandleCommand(cmd string, args []string) (string, error)
}

// IPCHandlerFunc adapts a function to IPCHandler.
type IPCHandlerFunc func(cmd string, args []string) (string, error)

func (f IPCHandlerFunc) HandleCommand(cmd string, args []string) (string, error) {
	return f(cmd, args)
}

// IPCServer serves the line protocol on a Unix socket: the client sends
// one line "COMMAND [args...]" and receives one JSON line back.
type IPCServer struct {
	socketPath string
	handler    IPCHandler
	logger     *slog.Logger

	listener net.Listener
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// NewIPCServer returns a server for socketPath dispatching to handler.
func NewIPCServer(socketPath string, handler IPCHandler, logger *slog.Logger) *IPCServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &IPCServer{
		socketPath: socketPath,
		handler:    handler,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Start listens on the socket, replacing a stale socket file. The socket is
// owner-only.
func (s *IPCServer) Start() error {
	os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener, waits for in-flight requests and removes the
// socket file. Safe to call more than once.
func (s *IPCServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		os.Remove(s.socketPath)
	})
}

func (s *IPCServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.logger.Debug("ipc accept failed", "err", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *IPCServer) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(30 * time.Second))

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}
	cmd, args := parseIPCCommand(scanner.Text())
	if cmd == "" {
		return
	}
	s.logger.Debug("ipc command", "cmd", cmd, "args", args)

	response, err := s.handler.HandleCommand(cmd, args)
	if err != nil {
		data, _ := json.Marshal(map[string]string{"error": err.Error()})
		fmt.Fprintf(conn, "%s\n", data)
		return
	}
	if compacted, err := compactJSON(response); err == nil {
		response = compacted
	}
	fmt.Fprintf(conn, "%s\n", response)
}

// parseIPCCommand splits a request line into an upper-cased command and its
// positional arguments.
//
//	STATUS      -> "STATUS", []
//	flash 10    -> "FLASH", ["10"]
func parseIPCCommand(line string) (string, []string) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "", nil
	}
	return strings.ToUpper(parts[0]), parts[1:]
}

// OK is the response body of commands with nothing to report.
func OK(extra map[string]any) string {
	body := map[string]any{"ok": true}
	for k, v := range extra {
		body[k] = v
	}
	data, _ := json.Marshal(body)
	return string(data)
}

// IPCClient sends commands to a running daemon.
type IPCClient struct {
	socketPath string
	timeout    time.Duration
}

// NewIPCClient returns a client for the daemon at socketPath.
func NewIPCClient(socketPath string) *IPCClient {
	return &IPCClient{socketPath: socketPath, timeout: 30 * time.Second}
}

// SendCommand sends one command line and returns the daemon's JSON
// response. A response carrying an "error" field is returned as an error.
func (c *IPCClient) SendCommand(cmd string, args ...string) (string, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return "", fmt.Errorf("connect to daemon: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.timeout))

	line := strings.Join(append([]string{cmd}, args...), " ")
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read response: %w", err)
		}
		return "", errors.New("empty response from daemon")
	}
	resp := scanner.Text()

	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(resp), &e) == nil && e.Error != "" {
		return resp, errors.New(e.Error)
	}
	return resp, nil
}

func compactJSON(s string) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
