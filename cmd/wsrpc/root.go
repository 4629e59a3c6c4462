package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/samiralibabic/wsrpc/internal/audit"
	"github.com/samiralibabic/wsrpc/internal/client"
	"github.com/samiralibabic/wsrpc/internal/config"
	"github.com/samiralibabic/wsrpc/internal/logging"
	"github.com/samiralibabic/wsrpc/internal/openrpc"
)

type app struct {
	configPath string
	url        string
	token      string
	schema     string
	logLevel   string
	logFormat  string
	transcript string

	cfg config.Config
	log zerolog.Logger
	doc *openrpc.Document
}

func newRootCmd() *cobra.Command {
	a := &app{log: zerolog.Nop()}
	cmd := &cobra.Command{
		Use:           "wsrpc",
		Short:         "JSON-RPC 2.0 client over a WebSocket connection",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "wsrpc.toml", "path to wsrpc config")
	pf.StringVar(&a.url, "url", "", "server address, ws://host:port/path or host:port")
	pf.StringVar(&a.token, "token", "", "bearer token sent when connecting")
	pf.StringVar(&a.schema, "schema", "", "OpenRPC document (JSON or YAML) used to check calls")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&a.logFormat, "log-format", "", "log format (console, json)")
	pf.StringVar(&a.transcript, "transcript", "", "append every frame to this JSON lines file")

	cmd.AddCommand(a.callCmd())
	cmd.AddCommand(a.listenCmd())
	cmd.AddCommand(a.methodsCmd())
	cmd.AddCommand(a.pipeCmd())
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	config.ApplyEnv(&cfg)

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.Client.URL = a.url
	}
	if flags.Changed("token") {
		cfg.Client.Token = a.token
	}
	if flags.Changed("schema") {
		cfg.Client.Schema = a.schema
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}
	if flags.Changed("transcript") {
		cfg.Transcript.Enabled = a.transcript != ""
		cfg.Transcript.Path = a.transcript
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log

	if cfg.Client.Schema != "" {
		doc, err := openrpc.Load(cfg.Client.Schema)
		if err != nil {
			return fmt.Errorf("load schema: %w", err)
		}
		if err := doc.Validate(); err != nil {
			return fmt.Errorf("schema %s: %w", cfg.Client.Schema, err)
		}
		a.doc = doc
	}
	return nil
}

func (a *app) connect(ctx context.Context) (*client.Client, error) {
	var transcript *audit.Logger
	if a.cfg.Transcript.Enabled {
		transcript = audit.New(true, a.cfg.Transcript.Path)
	}
	c := client.New(a.cfg.Client.URL, client.Options{
		Token: a.cfg.Client.Token,
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: a.cfg.Client.HandshakeTimeout(),
		},
		Logger:     &a.log,
		Document:   a.doc,
		Transcript: transcript,
	})
	ok, err := c.Connected(ctx)
	if err != nil {
		_ = c.Disconnect()
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("could not connect to %s", c.URL())
	}
	return c, nil
}

// callContext bounds how long a command waits for one response.
func (a *app) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := a.cfg.Client.CallTimeout(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
