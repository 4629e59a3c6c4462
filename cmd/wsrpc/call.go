package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (a *app) callCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <method> [param ...]",
		Short: "Call a method and print its result",
		Long: `
Call a method and print its result as JSON.

Each param is parsed as JSON; anything that does not parse is sent as a string.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Disconnect() //nolint:errcheck

			ctx, cancel := a.callContext(cmd.Context())
			defer cancel()
			result, err := c.Go(args[0], parseParams(args[1:])...).Wait(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(result))
			return err
		},
	}
}

func parseParams(args []string) []any {
	params := make([]any, 0, len(args))
	for _, arg := range args {
		dec := json.NewDecoder(strings.NewReader(arg))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil || dec.More() || !onlyWhitespaceLeft(dec) {
			params = append(params, arg)
			continue
		}
		params = append(params, v)
	}
	return params
}

func onlyWhitespaceLeft(dec *json.Decoder) bool {
	var rest bytes.Buffer
	_, _ = rest.ReadFrom(dec.Buffered())
	return len(bytes.TrimSpace(rest.Bytes())) == 0
}
