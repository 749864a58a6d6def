// meshmush-admin manages the trigger system of a running meshmush server.
// It communicates with the server via Unix domain socket.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	socketPath string

	rootCmd = &cobra.Command{
		Use:           "meshmush-admin",
		Short:         "Administer the trigger system of a running meshmush server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// send writes one protocol line and copies the response to stdout.
func send(line string) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return errors.Wrapf(err, "failed to connect to control socket %s", socketPath)
	}
	defer conn.Close()
	if _, err := fmt.Fprintln(conn, line); err != nil {
		return errors.Wrap(err, "failed to send command")
	}
	reader := bufio.NewReader(conn)
	for {
		response, err := reader.ReadString('\n')
		if err != nil {
			return errors.Wrap(err, "failed to read response")
		}
		response = strings.TrimRight(response, "\n")
		switch {
		case response == "OK":
			return nil
		case strings.HasPrefix(response, "ERROR: "):
			return errors.New(strings.TrimPrefix(response, "ERROR: "))
		}
		fmt.Println(response)
	}
}

func protocolCommand(use string, short string, args cobra.PositionalArgs, line func(args []string) string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(line(args))
		},
	}
}

func init() {
	homeDir, _ := os.UserHomeDir()
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", filepath.Join(homeDir, ".meshmush", "control.sock"), "Path to control socket")

	globalCmd := &cobra.Command{
		Use:   "global",
		Short: "Turn the whole trigger system on or off",
	}
	globalCmd.AddCommand(
		protocolCommand("on", "Enable all triggers", cobra.NoArgs, func([]string) string { return "TRIGGER GLOBAL ON" }),
		protocolCommand("off", "Emergency shutoff of all triggers", cobra.NoArgs, func([]string) string { return "TRIGGER GLOBAL OFF" }),
	)

	rootCmd.AddCommand(
		protocolCommand("disable <object>", "Disable the triggers of an object", cobra.ExactArgs(1), func(args []string) string {
			return "TRIGGER DISABLE " + args[0]
		}),
		protocolCommand("enable <object>", "Re-enable the triggers of an object", cobra.ExactArgs(1), func(args []string) string {
			return "TRIGGER ENABLE " + args[0]
		}),
		protocolCommand("list", "List disabled objects", cobra.NoArgs, func([]string) string { return "TRIGGER LIST" }),
		protocolCommand("stats", "Show trigger statistics", cobra.NoArgs, func([]string) string { return "TRIGGER STATS" }),
		protocolCommand("clear", "Forget rate limits, disables and statistics", cobra.NoArgs, func([]string) string { return "TRIGGER CLEAR" }),
		globalCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
