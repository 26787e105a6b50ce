// Package cli — gamedata.go implements the "paddock gamedata" command
// group, which extracts reference tables from the game client's
// master.mdb for plugin authors.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/paddock/internal/gamedata"
)

// gamedataFlags holds the flag values shared by the gamedata subcommands.
type gamedataFlags struct {
	db  string // --db: master.mdb path override
	out string // --out: output file (default stdout)
}

// NewGamedataCommand creates the "gamedata" command and its subcommands.
func NewGamedataCommand() *cobra.Command {
	flags := &gamedataFlags{}

	cmd := &cobra.Command{
		Use:   "gamedata",
		Short: "Extract reference data from the game's master.mdb",
		Long: `Extract reference tables from the game client's master database.
The database is opened read-only; output is CSV by default or JSON with
the global --json flag.

Examples:
  paddock gamedata characters
  paddock gamedata rival-races --out rival_races.csv
  paddock gamedata characters --db /path/to/master.mdb --json`,
	}

	cmd.PersistentFlags().StringVar(&flags.db, "db", "", "master.mdb path (default: the game client's copy)")
	cmd.PersistentFlags().StringVar(&flags.out, "out", "", "Output file (default: stdout)")

	cmd.AddCommand(&cobra.Command{
		Use:   "characters",
		Short: "Extract the character roster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGamedataCharacters(cmd.Context(), flags)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rival-races",
		Short: "Extract the single mode rival race table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGamedataRivalRaces(cmd.Context(), flags)
		},
	})

	return cmd
}

// runGamedataCharacters extracts and writes the character roster.
func runGamedataCharacters(ctx context.Context, flags *gamedataFlags) error {
	db, err := gamedata.Open(masterDBPath(flags))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	characters, err := gamedata.Characters(ctx, db)
	if err != nil {
		return err
	}

	return withOutput(flags.out, func(w io.Writer) error {
		if IsJSONOutput() {
			return writeJSON(w, characters)
		}
		return gamedata.WriteCharactersCSV(w, characters)
	})
}

// runGamedataRivalRaces extracts and writes the rival race table.
func runGamedataRivalRaces(ctx context.Context, flags *gamedataFlags) error {
	db, err := gamedata.Open(masterDBPath(flags))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	races, err := gamedata.RivalRaces(ctx, db)
	if err != nil {
		return err
	}

	return withOutput(flags.out, func(w io.Writer) error {
		if IsJSONOutput() {
			return writeJSON(w, races)
		}
		return gamedata.WriteRivalRacesCSV(w, races)
	})
}

func masterDBPath(flags *gamedataFlags) string {
	if flags.db != "" {
		return flags.db
	}
	return gamedata.DefaultMasterDBPath()
}

// withOutput runs write against --out (or stdout when unset).
func withOutput(out string, write func(io.Writer) error) error {
	if out == "" {
		return write(os.Stdout)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
