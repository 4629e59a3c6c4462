package main

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/samiralibabic/wsrpc/internal/client"
	"github.com/samiralibabic/wsrpc/internal/protocol"
	"github.com/samiralibabic/wsrpc/internal/transport/ndjson"
)

type pipeRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params,omitempty"`
}

type pipeResult struct {
	ID     int64              `json:"id"`
	Method string             `json:"method"`
	Result json.RawMessage    `json:"result,omitempty"`
	Error  *protocol.RPCError `json:"error,omitempty"`
}

func (a *app) pipeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pipe",
		Short: "Send calls read as JSON lines from stdin and print their outcomes",
		Long: `
Read {"method": ..., "params": [...]} lines from stdin, send each as a call
without waiting for earlier ones, and print one outcome line per call in input order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Disconnect() //nolint:errcheck

			g, ctx := errgroup.WithContext(cmd.Context())
			calls := make(chan *client.Call, 64)

			g.Go(func() error {
				defer close(calls)
				dec := ndjson.NewDecoder(cmd.InOrStdin())
				for {
					var req pipeRequest
					if err := dec.Decode(&req); err != nil {
						if errors.Is(err, io.EOF) {
							return nil
						}
						return err
					}
					select {
					case calls <- c.Go(req.Method, req.Params...):
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			})

			g.Go(func() error {
				enc := ndjson.NewEncoder(cmd.OutOrStdout())
				for call := range calls {
					waitCtx, cancel := a.callContext(ctx)
					result, err := call.Wait(waitCtx)
					cancel()
					out := pipeResult{ID: call.ID(), Method: call.Method()}
					var rpcErr *protocol.RPCError
					switch {
					case err == nil:
						out.Result = result
					case errors.As(err, &rpcErr):
						out.Error = rpcErr
					default:
						return err
					}
					if err := enc.Encode(out); err != nil {
						return err
					}
				}
				return nil
			})

			return g.Wait()
		},
	}
}
