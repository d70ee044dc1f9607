package main

import (
	"github.com/spf13/cobra"
)

func playersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "players",
		Short: "List managed devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(app)
			defer cancel()

			reply, err := app.client.GetPlayers(ctx, app.targets)
			if err != nil {
				return err
			}
			return app.printer.Print(reply)
		},
	}
}
