// Command datagrid views, inspects and exports paginated tables built from
// data files, table definitions and Delta Sharing profiles.
package main

import (
	"fmt"
	"os"

	"fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	arrowadapter "datagrid/adapters/arrow"
	"datagrid/internal/logging"
	"datagrid/windows"
)

type rootOptions struct {
	verbose    bool
	dev        bool
	apiTimeout int
	log        *zap.Logger
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "datagrid",
		Short:         "Paginated, filterable table viewer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(logging.Options{Verbose: opts.verbose, Development: opts.dev})
			if err != nil {
				return err
			}
			opts.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")
	cmd.PersistentFlags().BoolVar(&opts.dev, "dev", false, "human-readable log output")
	cmd.PersistentFlags().IntVar(&opts.apiTimeout, "timeout", 60, "timeout for remote sources in seconds")

	cmd.AddCommand(viewCommand(opts), exportCommand(opts), inspectCommand(opts))
	return cmd
}

func viewCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "view [file...]",
		Short: "Open files, table definitions or sharing profiles in the viewer",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app.NewWithID("io.datagrid.viewer")
			windows.NewMainWindow(a, windows.Options{Log: opts.log, APITimeout: opts.apiTimeout}).Run(args...)
			return nil
		},
	}
}

func exportCommand(opts *rootOptions) *cobra.Command {
	q := &queryFlags{}
	var output string
	cmd := &cobra.Command{
		Use:   "export <file> -o <output>",
		Short: "Write one page of a table as CSV, JSON or Parquet",
		Long:  "Load a data file or table definition, apply filters, search and sort, and write the resulting page. The format follows the output extension.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := q.open(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			defer tbl.Close()

			rows := tbl.State().Rows
			if err := arrowadapter.ExportFile(output, rows, tbl.Columns(), tbl.RenderCell); err != nil {
				return err
			}
			opts.log.Info("exported page", zap.String("output", output), zap.Int("rows", len(rows)))
			return nil
		},
	}
	q.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (.csv, .json or .parquet)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func inspectCommand(opts *rootOptions) *cobra.Command {
	q := &queryFlags{}
	var format string
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print one page of a table to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := arrowadapter.ParseFormat(format)
			if err != nil {
				return err
			}
			tbl, err := q.open(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			defer tbl.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(cmd.ErrOrStderr(), summary(tbl))
			return arrowadapter.Export(out, tbl, tbl.State().Rows, f)
		},
	}
	q.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format: csv or json")
	return cmd
}
