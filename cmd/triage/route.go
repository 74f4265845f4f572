package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vsavkov/triage/internal/reqctx"
)

func newRouteCmd(root *rootFlags) *cobra.Command {
	var (
		message string
		files   []string
	)
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Show which handler a request would be routed to, without executing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			runner := buildRunner(cfg, "")
			rc := reqctx.Normalize(requestPayload("", files))
			d := runner.Route(message, rc)
			fmt.Fprintf(cmd.OutOrStdout(), "handler=%s confidence=%.2f reason=%s\n",
				d.HandlerID, d.Confidence, d.Reason)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "request message")
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "attached file path (repeatable)")
	return cmd
}
