package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mikey-austin/heosq/internal/core"
)

func queueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Queue commands",
	}

	cmd.AddCommand(queueListCommand())
	cmd.AddCommand(queueClearCommand())
	cmd.AddCommand(queueKeepCurrentCommand())
	cmd.AddCommand(queueRemoveCommand())

	return cmd
}

func queueListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queue entries per device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(app)
			defer cancel()

			reply, err := app.client.GetQueue(ctx, app.targets)
			if err != nil {
				return err
			}
			return app.printer.Print(reply)
		},
	}
}

func queueClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the playback queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(app)
			defer cancel()

			if err := app.client.ClearQueue(ctx, app.targets); err != nil {
				return err
			}
			return app.printer.Print(nil)
		},
	}
}

func queueKeepCurrentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keep-current",
		Short: "Remove everything except the playing entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(app)
			defer cancel()

			if err := app.client.ClearQueueExceptNowPlaying(ctx, app.targets); err != nil {
				return err
			}
			return app.printer.Print(nil)
		},
	}
}

func queueRemoveCommand() *cobra.Command {
	var report bool

	cmd := &cobra.Command{
		Use:   "rm <qid>",
		Short: "Remove one queue entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(app)
			defer cancel()

			qid, err := strconv.Atoi(args[0])
			if err != nil || qid < 1 {
				return &core.CLIError{Code: core.ExitUsage, Msg: "qid must be a positive integer"}
			}

			reply, err := app.client.RemoveFromQueue(ctx, app.targets, qid, report)
			if err != nil {
				return err
			}
			if !report {
				return app.printer.Print(nil)
			}
			return app.printer.Print(reply)
		},
	}

	cmd.Flags().BoolVar(&report, "report", false, "return the per-device outcome")
	return cmd
}
