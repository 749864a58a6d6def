package integration_test

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zond/meshmush/loader"
	"github.com/zond/meshmush/server"
	"github.com/zond/meshmush/storage"
)

const (
	defaultWaitTimeout = 5 * time.Second
)

// TestServer wraps a server instance running on a random port in a temporary directory.
type TestServer struct {
	tmpDir      string
	sshListener net.Listener
	cancel      context.CancelFunc
	done        chan error
}

// NewTestServer seeds a fresh world from seed and starts a server on it.
func NewTestServer(seed string, wizards ...string) (*TestServer, error) {
	tmpDir, err := os.MkdirTemp("", "meshmush-integration-*")
	if err != nil {
		return nil, err
	}

	if seed != "" {
		if err := restore(tmpDir, seed); err != nil {
			os.RemoveAll(tmpDir)
			return nil, err
		}
	}

	srv, err := server.New(server.Config{
		Dir:       tmpDir,
		SpawnRoom: "genesis",
		Wizards:   wizards,
	})
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, err
	}

	sshLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	ts := &TestServer{
		tmpDir:      tmpDir,
		sshListener: sshLn,
		cancel:      cancel,
		done:        make(chan error, 1),
	}
	go func() {
		ts.done <- srv.StartWithListener(ctx, sshLn)
	}()

	// The control socket is created after storage is open, so it signals readiness.
	ready := waitForCondition(defaultWaitTimeout, 50*time.Millisecond, func() bool {
		conn, err := net.DialTimeout("unix", ts.ControlSocket(), 100*time.Millisecond)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	})
	if !ready {
		ts.Close()
		return nil, fmt.Errorf("server did not become ready")
	}
	return ts, nil
}

func restore(dir string, seed string) error {
	ctx := context.Background()
	store, err := storage.New(ctx, dir)
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = loader.Restore(ctx, store, strings.NewReader(seed))
	return err
}

// Close shuts down the test server and cleans up.
func (ts *TestServer) Close() error {
	ts.cancel()
	var err error
	select {
	case err = <-ts.done:
	case <-time.After(defaultWaitTimeout):
		err = fmt.Errorf("server did not shut down")
	}
	os.RemoveAll(ts.tmpDir)
	return err
}

func (ts *TestServer) SSHAddr() string {
	return ts.sshListener.Addr().String()
}

func (ts *TestServer) ControlSocket() string {
	return filepath.Join(ts.tmpDir, "control.sock")
}

// Control sends one command over the control socket and returns the response
// lines, including the final OK or ERROR line.
func (ts *TestServer) Control(cmd string) ([]string, error) {
	conn, err := net.DialTimeout("unix", ts.ControlSocket(), time.Second)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(defaultWaitTimeout)); err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintln(conn, cmd); err != nil {
		return nil, err
	}
	result := []string{}
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		result = append(result, line)
		if line == "OK" || strings.HasPrefix(line, "ERROR") {
			return result, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return result, err
	}
	return result, fmt.Errorf("control connection closed without status: %q", result)
}

func waitForCondition(timeout time.Duration, interval time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(interval)
	}
	return false
}
