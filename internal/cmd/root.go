package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/andyk/ht/internal/config"
	"github.com/andyk/ht/internal/events"
	"github.com/andyk/ht/internal/logger"
	"github.com/andyk/ht/internal/server"
	"github.com/andyk/ht/internal/session"
)

// Version information
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersionInfo sets the version information from the main package
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = version
}

var (
	sizeFlag      string
	subscribeFlag string
	listenFlag    string
)

var rootCmd = &cobra.Command{
	Use:   "ht [flags] [--] [command] [args...]",
	Short: "headless terminal driven over JSON commands and events",
	Long: `ht runs a command inside a pseudoterminal, keeps an in-memory
xterm-compatible screen of its output, and talks to clients with one JSON
command per stdin line and one JSON event per stdout line. With --listen the
same terminal is observable live over HTTP/WebSocket.

With no command, ht starts a login shell from $SHELL (bash as fallback).`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.Flags().StringVar(&sizeFlag, "size", "", "initial terminal size as COLSxROWS (default 120x40)")
	rootCmd.Flags().StringVar(&subscribeFlag, "subscribe", "", "comma-separated event types to stream on stdout (init, output, resize, snapshot)")
	rootCmd.Flags().StringVarP(&listenFlag, "listen", "l", "", "enable the HTTP server, optionally on HOST:PORT")
	rootCmd.Flags().Lookup("listen").NoOptDefVal = config.DefaultListenAddr
}

func run(cmd *cobra.Command, args []string) error {
	logger.Configure(logger.GetLogLevelFromEnv())

	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	var filter map[events.Type]bool
	if len(cfg.Subscribe) > 0 {
		filter, err = events.ParseTypes(cfg.Subscribe)
		if err != nil {
			return err
		}
	}

	sess, err := session.New(cfg.Command, cfg.Cols, cfg.Rows)
	if err != nil {
		return err
	}
	logger.Debugf("spawned %v (pid %d) at %dx%d", cfg.Command, sess.Pid(), cfg.Cols, cfg.Rows)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// STDOUT event sink, attached before the loop starts so it sees every
	// event from the first child output on
	stdoutDone := make(chan struct{})
	if len(filter) > 0 {
		sub := sess.SubscribeAtStart(filter)
		go func() {
			defer close(stdoutDone)
			session.WriteEvents(os.Stdout, sub)
		}()
	} else {
		close(stdoutDone)
	}

	runDone := make(chan error, 1)
	go func() {
		runDone <- sess.Run(ctx)
	}()

	// STDIN command source; its EOF ends the session
	go func() {
		session.ReadCommands(os.Stdin, sess)
		sess.Shutdown()
	}()

	var srv *server.Server
	if cfg.Listen != "" {
		srv = server.New(sess)
		go func() {
			if err := srv.Listen(cfg.Listen); err != nil {
				logger.Errorf("http server: %v", err)
			}
		}()
	}

	err = <-runDone
	<-stdoutDone
	if srv != nil {
		_ = srv.Shutdown()
	}
	return err
}

// resolveConfig merges flags over the optional defaults file over the
// built-in defaults.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	fc, err := config.LoadFile(config.ConfigPath())
	if err != nil {
		return nil, err
	}

	size := sizeFlag
	if !cmd.Flags().Changed("size") && fc.Size != "" {
		size = fc.Size
	}
	subscribe := subscribeFlag
	if !cmd.Flags().Changed("subscribe") && fc.Subscribe != "" {
		subscribe = fc.Subscribe
	}
	listen := listenFlag
	if !cmd.Flags().Changed("listen") && fc.Listen != "" {
		listen = fc.Listen
	}

	cfg := &config.Config{
		Cols:      config.DefaultCols,
		Rows:      config.DefaultRows,
		Subscribe: config.ParseSubscribe(subscribe),
		Listen:    listen,
		Command:   args,
	}
	if size != "" {
		cfg.Cols, cfg.Rows, err = config.ParseSize(size)
		if err != nil {
			return nil, err
		}
	}
	if len(cfg.Command) == 0 {
		cfg.Command = config.DefaultCommand()
	}

	return cfg, nil
}
