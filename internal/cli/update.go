// Package cli — update.go implements the "paddock update" command, which
// checks GitHub for a new release of the automation module. paddock only
// reports: installing the update is the module's own affair.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mmr-tortoise/paddock/internal/state"
	"github.com/mmr-tortoise/paddock/internal/update"
)

// updateFlags holds the flag values for the update command.
type updateFlags struct {
	current string // --current: installed module version for comparison
	repo    string // --repo: repository override (owner/name)
	notes   bool   // --notes: render the release notes
	stateDB string // --state-db: database path override
}

// NewUpdateCommand creates the "update" cobra command.
func NewUpdateCommand() *cobra.Command {
	flags := &updateFlags{}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for a new automation module release",
		Long: fmt.Sprintf(`Check GitHub for the latest release of the automation module
(default repository %s).

Examples:
  paddock update
  paddock update --current v1.11.0
  paddock update --notes`, update.DefaultRepo),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.current, "current", "", "Installed module version to compare against")
	cmd.Flags().StringVar(&flags.repo, "repo", "", "Repository to check (owner/name)")
	cmd.Flags().BoolVar(&flags.notes, "notes", false, "Render the release notes")
	cmd.Flags().StringVar(&flags.stateDB, "state-db", "", "Run history database path")

	return cmd
}

// runUpdate fetches the latest release and prints it.
func runUpdate(ctx context.Context, flags *updateFlags) error {
	release, err := update.Check(ctx, flags.repo)
	if err != nil {
		return err
	}

	// Bookkeeping is best-effort here too: an unwritable state database
	// must not fail an otherwise successful check.
	saveUpdateCheck(ctx, flags.stateDB, release.TagName)

	if IsJSONOutput() {
		view := struct {
			update.Release
			Newer *bool `json:"newer,omitempty"`
		}{Release: release}
		if flags.current != "" {
			newer := update.IsNewer(flags.current, release.TagName)
			view.Newer = &newer
		}
		data, _ := json.MarshalIndent(view, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Latest release: %s (published %s)\n",
		release.TagName, release.PublishedAt.Local().Format("2006-01-02"))
	fmt.Printf("  %s\n", release.HTMLURL)
	if flags.current != "" {
		if update.IsNewer(flags.current, release.TagName) {
			fmt.Printf("Newer than installed %s.\n", flags.current)
		} else {
			fmt.Printf("Installed %s is up to date.\n", flags.current)
		}
	}

	if flags.notes && release.Body != "" {
		notes, err := update.RenderNotes(release.Body)
		if err != nil {
			return err
		}
		fmt.Print(notes)
	}
	return nil
}

// saveUpdateCheck records the check in the state database, best-effort.
func saveUpdateCheck(ctx context.Context, stateDB, tag string) {
	path := stateDB
	if path == "" {
		var err error
		path, err = state.DefaultPath()
		if err != nil {
			zap.S().Debugf("skipping update-check bookkeeping: %v", err)
			return
		}
	}
	store, err := state.Open(path)
	if err != nil {
		zap.S().Debugf("skipping update-check bookkeeping: %v", err)
		return
	}
	defer func() { _ = store.Close() }()
	if err := store.SaveUpdateCheck(ctx, tag, time.Now()); err != nil {
		zap.S().Debugf("failed to save update check: %v", err)
	}
}
