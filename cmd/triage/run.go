package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRunCmd(root *rootFlags) *cobra.Command {
	var (
		message string
		files   []string
		session string
		handler string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one request through the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			runner := buildRunner(cfg, handler)
			res := runner.Run(cmd.Context(), message, requestPayload(session, files))

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Text)
			for _, a := range res.Artifacts {
				fmt.Fprintf(out, "artifact: %s (%s)\n", a.Path, a.Kind)
			}
			// A rejected review is reported in the text, not treated as a
			// command failure.
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "request message")
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "attached file path (repeatable)")
	cmd.Flags().StringVar(&session, "session", "", "session id")
	cmd.Flags().StringVar(&handler, "handler", "", "pin the run to one handler id")
	return cmd
}
