package main

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"wsclient/wsconn"
)

// exit codes
const (
	exitOK         = 0
	exitArgument   = 1
	exitConnection = 2
	exitINT        = 130
)

type rootConfig struct {
	origin             string
	timeout            time.Duration
	readLimit          int64
	insecureSkipVerify bool
	verbose            bool
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&rootConfig{})
}

func buildRootCmd(cfg *rootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "wsclient ws://host:port/path",
		Short:         "interactive WebSocket client",
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(cmd, cfg, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.origin, "origin", "", "ignored: the Origin header sent is always the dial URL")
	f.DurationVarP(&cfg.timeout, "timeout", "t", 10*time.Second, "dial timeout")
	f.Int64Var(&cfg.readLimit, "read-limit", 0, "max accepted inbound payload in bytes (default: 1 MiB)")
	f.BoolVarP(&cfg.insecureSkipVerify, "insecure-skip-verify", "k", false, "skip TLS certificate verification on wss:// (insecure)")
	f.BoolVarP(&cfg.verbose, "verbose", "v", false, "log connection lifecycle events to stderr")

	return cmd
}

func runConnect(cmd *cobra.Command, cfg *rootConfig, rawURL string) error {
	var opts []wsconn.ConnOption
	opts = append(opts, wsconn.WithDialTimeout(cfg.timeout))
	if cfg.readLimit > 0 {
		opts = append(opts, wsconn.WithReadLimit(cfg.readLimit))
	}
	if cfg.insecureSkipVerify {
		opts = append(opts, wsconn.WithTLSConfig(&tls.Config{InsecureSkipVerify: true})) //nolint:gosec
	}

	logLevel := slog.LevelWarn
	if cfg.verbose {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	opts = append(opts, wsconn.WithLogger(logger))

	sink := newCLISink(cmd.OutOrStdout())
	c := wsconn.NewConn(sink, opts...)

	go func() {
		<-cmd.Context().Done()
		c.Interrupt()
	}()
	go feedStdin(cmd, c)

	err := c.Connect(cmd.Context(), rawURL)

	var interrupted *wsconn.InterruptedError
	if errors.As(err, &interrupted) {
		return nil
	}
	return err
}

// feedStdin reads one line of input at a time and sends each as a text
// frame, stopping (and interrupting the connection) once stdin closes or
// a send fails. Interactive sessions get a "> " prompt; piped input does
// not.
func feedStdin(cmd *cobra.Command, c *wsconn.Conn) {
	in := cmd.InOrStdin()
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}

	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			fmt.Fprint(cmd.OutOrStdout(), "> ")
		}
		if !scanner.Scan() {
			break
		}
		if err := c.SendText(scanner.Text()); err != nil {
			break
		}
	}
	c.Interrupt()
}

// exitCode maps an error to the appropriate process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ae *wsconn.ArgumentError
	if errors.As(err, &ae) {
		return exitArgument
	}
	return exitConnection
}
