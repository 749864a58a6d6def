package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/zond/meshmush"
	"github.com/zond/meshmush/game"
	"github.com/zond/meshmush/storage"
)

// Control serves the operator line protocol on a Unix socket. Each request
// is one line, each response is zero or more lines followed by OK or
// ERROR: <message>.
type Control struct {
	admin    *game.Admin
	listener net.Listener
	path     string
}

// ListenControl replaces any stale socket at path and starts listening.
func ListenControl(path string, admin *game.Admin) (*Control, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, meshmush.WithStack(err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, meshmush.WithStack(err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		listener.Close()
		return nil, meshmush.WithStack(err)
	}
	return &Control{
		admin:    admin,
		listener: listener,
		path:     path,
	}, nil
}

func (c *Control) Close() error {
	err := c.listener.Close()
	os.Remove(c.path)
	return err
}

// Serve accepts connections until ctx is cancelled or the listener is closed.
func (c *Control) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		c.Close()
	}()
	for {
		conn, err := c.listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			return nil
		} else if err != nil {
			return meshmush.WithStack(err)
		}
		go c.handle(ctx, conn)
	}
}

func (c *Control) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	ctx = storage.SetSessionID(ctx, meshmush.NextUniqueID())
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := c.Execute(ctx, conn, line); err != nil {
			fmt.Fprintf(conn, "ERROR: %v\n", err)
		} else {
			fmt.Fprintln(conn, "OK")
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("control connection: %v", err)
	}
}

// Execute runs one protocol line, writing response lines but not the final status to w.
func (c *Control) Execute(ctx context.Context, w io.Writer, line string) error {
	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "TRIGGER") {
		return errors.Errorf("unknown command %q", line)
	}
	args := fields[2:]
	caller := storage.SystemRef()
	switch strings.ToUpper(fields[1]) {
	case "DISABLE":
		if len(args) != 1 {
			return errors.New("usage: TRIGGER DISABLE <object>")
		}
		if err := c.admin.Disable(ctx, caller, args[0]); errors.Is(err, os.ErrNotExist) {
			return errors.Errorf("no object %q", args[0])
		} else if err != nil {
			return err
		}
		fmt.Fprintf(w, "Triggers on %s disabled.\n", args[0])
	case "ENABLE":
		if len(args) != 1 {
			return errors.New("usage: TRIGGER ENABLE <object>")
		}
		if c.admin.Enable(ctx, caller, args[0]) {
			fmt.Fprintf(w, "Triggers on %s enabled.\n", args[0])
		} else {
			fmt.Fprintf(w, "Triggers on %s were not disabled.\n", args[0])
		}
	case "LIST":
		c.admin.WriteDisabled(ctx, w)
	case "STATS":
		c.admin.FormatStats(ctx, w)
	case "GLOBAL":
		if len(args) != 1 {
			return errors.New("usage: TRIGGER GLOBAL ON|OFF")
		}
		switch strings.ToUpper(args[0]) {
		case "ON":
			c.admin.SetGlobal(ctx, caller, true)
			fmt.Fprintln(w, "Trigger system ENABLED.")
		case "OFF":
			c.admin.SetGlobal(ctx, caller, false)
			fmt.Fprintln(w, "Trigger system DISABLED.")
		default:
			return errors.New("usage: TRIGGER GLOBAL ON|OFF")
		}
	case "CLEAR":
		c.admin.Clear(ctx, caller)
		fmt.Fprintln(w, "Trigger state cleared.")
	default:
		return errors.Errorf("unknown command %q", line)
	}
	return nil
}
