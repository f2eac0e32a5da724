package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/librisapp/libris-server/internal/domain"
	"github.com/librisapp/libris-server/internal/search"
	"github.com/librisapp/libris-server/internal/service"
	"github.com/librisapp/libris-server/internal/validation"
)

func newReindexCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the full-text search index from the database",
		Long: `Rebuild the full-text search index from the database.

The index is locked while a server has it open, so stop the server first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.open(); err != nil {
				return err
			}
			idx, err := search.Open(search.Options{
				Path:   a.cfg.Data.SearchIndexPath,
				Logger: a.log.WithComponent("search").Logger,
			})
			if err != nil {
				return fmt.Errorf("opening search index: %w", err)
			}
			defer func() { _ = idx.Close() }()

			catalog := service.NewCatalogService(a.store, idx, validation.New(), a.log.Logger)
			n, err := catalog.Reindex(cmd.Context())
			if err != nil {
				return err
			}
			ok(cmd.OutOrStdout(), "Indexed %d documents into %s", n, a.cfg.Data.SearchIndexPath)
			return nil
		},
	}
}

func newRecommendCmd(a *app) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "recommend <username>",
		Short: "Show a user's recommendations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			ctx := cmd.Context()
			user, err := a.store.GetUserByUsername(ctx, args[0])
			if err != nil {
				return fmt.Errorf("user %q: %w", args[0], err)
			}

			engine := a.engine()
			var recs []*domain.Publication
			if refresh {
				recs, err = engine.Refresh(ctx, user.ID)
			} else {
				recs, err = engine.Recommend(ctx, user.ID)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				warn(out, "No recommendations for %s", user.Username)
				return nil
			}
			header(out, "Recommendations for %s", user.Username)
			for i, p := range recs {
				fmt.Fprintf(out, "  %d. %s [%d]\n", i+1, p.Title, p.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Recompute and overwrite the cached list")
	return cmd
}
