package main

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/spf13/cobra"

	"github.com/samiralibabic/wsrpc/internal/client"
	"github.com/samiralibabic/wsrpc/internal/transport/ndjson"
)

type notificationLine struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func (a *app) listenCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "listen <notification> [notification ...]",
		Short: "Print notifications as JSON lines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.doc != nil {
				for _, name := range args {
					if m, ok := a.doc.Method(name); !ok || !m.IsNotification() {
						a.log.Warn().Str("method", name).Msg("Not a notification in schema")
					}
				}
			}

			c, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Disconnect() //nolint:errcheck

			enc := ndjson.NewEncoder(cmd.OutOrStdout())
			done := make(chan struct{})
			var (
				mu      sync.Mutex
				seen    int
				stopped bool
			)
			listener := client.ListenerFunc(func(method string, params json.RawMessage) {
				mu.Lock()
				defer mu.Unlock()
				if stopped {
					return
				}
				if err := enc.Encode(notificationLine{Method: method, Params: params}); err != nil {
					a.log.Warn().Err(err).Str("method", method).Msg("Failed to write notification")
				}
				seen++
				if count > 0 && seen == count {
					stopped = true
					close(done)
				}
			})
			for _, name := range args {
				c.Subscribe(name, listener)
			}
			defer func() {
				mu.Lock()
				stopped = true
				mu.Unlock()
			}()

			select {
			case <-done:
				return nil
			case <-cmd.Context().Done():
				return nil
			case <-c.Closed():
				return errors.New("connection closed by server")
			}
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "exit after this many notifications, 0 runs until interrupted")
	return cmd
}
