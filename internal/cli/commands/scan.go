package commands

import (
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/tassa-yoniso-manasi-karoto/atci/internal/discovery"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/queue"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/store"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single discovery pass and exit",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		log := newLogger()
		cfg := loadConfig()
		snap := cfg.Snapshot()

		dir, err := dataDir()
		if err != nil {
			exitWithError(err)
		}
		db, err := store.Open(filepath.Join(dir, "atci.db"))
		if err != nil {
			exitWithError(err)
		}
		defer db.Close()

		q := queue.New(db)
		loop := discovery.New(snap.WatchDirectories, q, log)

		bar := progressbar.NewOptions(len(snap.WatchDirectories),
			progressbar.OptionSetDescription("scanning watch directories"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(31),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetWriter(os.Stdout),
		)
		loop.OnRootScanned = func(root string) { bar.Add(1) }

		loop.Tick()

		pending, err := q.Pending()
		if err != nil {
			exitWithError(err)
		}
		printf("%d job(s) pending after scan\n", len(pending))
	},
}
