// Package ingest implements the ingest command for loading tiles and point
// matches into the local store.
package ingest

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emalign/emsolve/internal/config"
	"github.com/emalign/emsolve/internal/matches"
)

// IngestCmd loads tile and point-match collection files into the store
// that assemble reads from.
var IngestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Load tiles and point matches into the local store",
	Long: "Load tiles and point matches into the local store.\n\n" +
		"Each file is a JSON collection with a tiles array (tile_id, z, params) " +
		"and a matches array (p_tile, q_tile, p_z, q_z and flat px/py/qx/qy/w " +
		"point arrays; weights default to 1 when omitted). Tiles are upserted " +
		"by id, so re-ingesting a section replaces its initial transforms.",
	Example: `  # Load one section's tiles and matches
  emsolve ingest section_0001.json

  # Load a whole export
  emsolve ingest export/*.json`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: validateIngest,
	RunE:    runIngest,
}

func validateIngest(cmd *cobra.Command, args []string) error {
	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Get()

	store, err := matches.Open(ctx, config.ExpandPath(cfg.Store.Path))
	if err != nil {
		return err
	}
	defer store.Close()

	var tiles, ms int
	for _, path := range args {
		c, err := matches.ReadFile(path)
		if err != nil {
			return err
		}
		if err := store.Ingest(ctx, c); err != nil {
			return fmt.Errorf("failed to ingest %s; %w", path, err)
		}
		tiles += len(c.Tiles)
		ms += len(c.Matches)
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d tiles, %d matches\n",
			path, len(c.Tiles), len(c.Matches))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d tiles and %d matches from %d file(s)\n",
		tiles, ms, len(args))
	return nil
}
