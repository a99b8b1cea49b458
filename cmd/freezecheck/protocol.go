// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"freezecheck-cli/internal/protocol"
)

func newProtocolCommand(app *App) *cobra.Command {
	protoCmd := &cobra.Command{
		Use:   "protocol",
		Short: "Inspect run-protocol streams",
		Long: `Inspect run-protocol streams.

The run driver prints one line per frozen process it ran:

  <pid> <exit code> <log base> <console|windowed> <name>

followed by a terminal line "status <exit code>". Names that would not
survive whitespace splitting are written as b64:<base64>.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var asJSON bool
	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a stream read from standard input",
		Long: `Decode a stream read from standard input.

Exits with the status carried by the terminal record, or 1 when the stream
is malformed or ends without one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			enc := json.NewEncoder(app.stdout)
			for rec, err := range protocol.Records(app.stdin) {
				if err != nil {
					fmt.Fprintf(app.stderr, "%s %v\n", ErrorStyle.Render("Error:"), err)
					return &ExitError{Code: 1, Err: err}
				}
				if asJSON {
					if err := enc.Encode(rec); err != nil {
						return err
					}
				} else {
					printRecord(app, rec)
				}
				if rec.Terminal() && rec.Code() != 0 {
					return &ExitError{Code: rec.Code().ProcessStatus()}
				}
			}
			return nil
		},
	}
	decodeCmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON object per record")
	protoCmd.AddCommand(decodeCmd)

	protoCmd.AddCommand(&cobra.Command{
		Use:   "encode-name <name>",
		Short: "Print a process name as the run driver writes it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(app.stdout, protocol.EncodeName(args[0]))
			return nil
		},
	})

	return protoCmd
}

func printRecord(app *App, rec protocol.Record) {
	switch r := rec.(type) {
	case protocol.ProcessRecord:
		status := SuccessStyle.Render("ok")
		if r.ExitCode != 0 {
			status = ErrorStyle.Render("exit status " + r.ExitCode.String())
		}
		fmt.Fprintf(app.stdout, "%s [%s] pid %d, logs %s: %s\n", KeyStyle.Render(r.Name), r.AppType, r.PID, r.LogBase, status)
	case protocol.TerminalRecord:
		fmt.Fprintf(app.stdout, "%s %s\n", TitleStyle.Render("status"), r.ExitCode)
	}
}
