package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/librisapp/libris-server/internal/domain"
	"github.com/librisapp/libris-server/internal/similarity"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		format       string
		strict       bool
		noSymmetrize bool
	)

	cmd := &cobra.Command{
		Use:   "import-similarities <file>",
		Short: "Load similarity edges from a CSV, TSV or JSON lines file",
		Long: `Load similarity edges into the catalog.

Delimited files carry origin,destination,score per line with an optional
header. JSON lines files carry {"origin":1,"destination":2,"score":0.4}.
Pass - to read standard input; --format is then required.

Edges pointing at unknown publications are skipped unless --strict is set.
Cached recommendations are flushed after a successful import.

Examples:
  librisctl import-similarities edges.csv
  librisctl import-similarities --strict edges.jsonl
  zcat edges.tsv.gz | librisctl import-similarities --format tsv -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var f similarity.Format
			if format != "" {
				var err error
				if f, err = similarity.ParseFormat(format); err != nil {
					return err
				}
			}
			if args[0] == "-" && f == "" {
				return errors.New("--format is required when reading standard input")
			}

			if err := a.open(); err != nil {
				return err
			}
			importer := similarity.NewImporter(a.store, a.engine(), a.log.WithComponent("similarity").Logger)
			opts := similarity.Options{
				Symmetrize: a.cfg.Similarity.Symmetrize && !noSymmetrize,
				Strict:     strict,
			}

			var (
				run *domain.SimilarityImport
				err error
			)
			if args[0] == "-" {
				run, err = importer.Import(cmd.Context(), "stdin", cmd.InOrStdin(), f, opts)
			} else {
				run, err = importer.ImportFile(cmd.Context(), args[0], f, opts)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			ok(out, "Imported %d edges from %s (batch %s)", run.EdgeCount, run.Source, run.ID)
			if run.Skipped > 0 {
				warn(out, "Skipped %d edges referencing unknown publications", run.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Input format: csv, tsv or jsonl (default: from extension)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on edges that reference unknown publications")
	cmd.Flags().BoolVar(&noSymmetrize, "no-symmetrize", false, "Only write the directions present in the file")
	return cmd
}
