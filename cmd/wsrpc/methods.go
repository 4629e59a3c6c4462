package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) methodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List the methods of the configured OpenRPC document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.doc == nil {
				return errors.New("no schema configured, set --schema")
			}
			w := cmd.OutOrStdout()
			for _, name := range a.doc.MethodNames() {
				m, _ := a.doc.Method(name)
				kind := "request"
				if m.IsNotification() {
					kind = "notification"
				}
				if _, err := fmt.Fprintf(w, "%s\t%s\n", kind, name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
