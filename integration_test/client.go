package integration_test

import (
	"fmt"
	"io"
	"strings"
	"time"

	cryptossh "golang.org/x/crypto/ssh"
)

// terminalClient wraps an interactive SSH session for testing.
type terminalClient struct {
	conn    *cryptossh.Client
	session *cryptossh.Session
	stdin   io.WriteCloser
	stdout  io.Reader
	readCh  chan readResult
	done    chan struct{}
}

type readResult struct {
	data []byte
	err  error
}

// newTerminalClient connects as username, which is also the player name.
func newTerminalClient(addr string, username string) (*terminalClient, error) {
	config := &cryptossh.ClientConfig{
		User: username,
		// InsecureIgnoreHostKey is acceptable here because we're connecting to a
		// test server we just started with a freshly generated key.
		HostKeyCallback: cryptossh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	}
	conn, err := cryptossh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("failed to dial SSH: %w", err)
	}

	session, err := conn.NewSession()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := session.RequestPty("xterm", 24, 80, cryptossh.TerminalModes{}); err != nil {
		session.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to request pty: %w", err)
	}

	if err := session.Shell(); err != nil {
		session.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}

	tc := &terminalClient{
		conn:    conn,
		session: session,
		stdin:   stdin,
		stdout:  stdout,
		done:    make(chan struct{}),
	}
	tc.startReader()
	return tc, nil
}

func (tc *terminalClient) sendLine(s string) error {
	if _, err := tc.stdin.Write([]byte(s + "\r")); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

func (tc *terminalClient) startReader() {
	tc.readCh = make(chan readResult, 100)
	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := tc.stdout.Read(buf)
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case tc.readCh <- readResult{data: data, err: err}:
			case <-tc.done:
				return
			}
			if err != nil {
				return
			}
		}
	}()
}

// readUntil reads until the timeout expires or match returns true, and returns everything read.
func (tc *terminalClient) readUntil(timeout time.Duration, match func(string) bool) string {
	var result strings.Builder
	deadline := time.After(timeout)
	for {
		select {
		case r := <-tc.readCh:
			result.Write(r.data)
			if r.err != nil {
				return result.String()
			}
			if match != nil && match(result.String()) {
				return result.String()
			}
		case <-deadline:
			return result.String()
		}
	}
}

// waitFor reads until expected appears or timeout.
func (tc *terminalClient) waitFor(expected string, timeout time.Duration) (string, bool) {
	output := tc.readUntil(timeout, func(s string) bool {
		return strings.Contains(s, expected)
	})
	return output, strings.Contains(output, expected)
}

// waitForPrompt reads until the output ends with a prompt.
func (tc *terminalClient) waitForPrompt(timeout time.Duration) (string, bool) {
	output := tc.readUntil(timeout, hasPrompt)
	return output, hasPrompt(output)
}

// sendCommand sends cmd and returns the output up to the next prompt.
func (tc *terminalClient) sendCommand(cmd string, timeout time.Duration) (string, bool) {
	if err := tc.sendLine(cmd); err != nil {
		return "", false
	}
	// Wait for the echoed command and the trailing prompt, so output from the previous command isn't mistaken for ours.
	output := tc.readUntil(timeout, func(s string) bool {
		return strings.Contains(s, cmd+"\r\n") && hasPrompt(s)
	})
	return output, strings.Contains(output, cmd+"\r\n") && hasPrompt(output)
}

func hasPrompt(s string) bool {
	return strings.HasSuffix(s, "\n> ") || strings.HasSuffix(s, "\n[off]> ")
}

func (tc *terminalClient) Close() {
	close(tc.done)
	tc.stdin.Close()
	tc.session.Close()
	tc.conn.Close()
}
