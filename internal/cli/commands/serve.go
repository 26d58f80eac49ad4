package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"

	"github.com/tassa-yoniso-manasi-karoto/atci/internal/api"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/cancel"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/discovery"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/executils"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/media"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/processor"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/queue"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run discovery, the processor loop, and the HTTP API until interrupted",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func dataDir() (string, error) {
	if xdg.Home == "" {
		return "", fmt.Errorf("resolve home directory")
	}
	dir := filepath.Join(xdg.Home, ".atci")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dir, nil
}

func runServe() {
	log := newLogger()
	cfg := loadConfig()
	snap := cfg.Snapshot()

	if os.Getenv("ATCI_DEBUG") != "" {
		pp.Println(snap)
	}

	dir, err := dataDir()
	if err != nil {
		exitWithError(err)
	}

	db, err := store.Open(filepath.Join(dir, "atci.db"))
	if err != nil {
		exitWithError(err)
	}
	defer db.Close()

	ffmpegPath, err := executils.ResolveBinary(snap.FFmpegPath, "ffmpeg")
	if err != nil {
		exitWithError(err)
	}
	ffprobePath, err := executils.ResolveBinary(snap.FFprobePath, "ffprobe")
	if err != nil {
		exitWithError(err)
	}

	q := queue.New(db)
	partStore := store.NewPartStore(db)
	idx := store.NewIndex(db)
	cm := cancel.NewManager()
	tool := media.NewTool(ffmpegPath, ffprobePath, log)

	discLoop := discovery.New(snap.WatchDirectories, q, log)
	procLoop := processor.New(cfg, q, tool, partStore, idx, cm, log)

	srv, err := api.New(cfg, q, cm, log)
	if err != nil {
		exitWithError(err)
	}
	srv.Start()
	log.Info().Str("addr", srv.Addr()).Msg("http api listening")

	var wg sync.WaitGroup
	stopDisc := make(chan struct{})
	stopProc := make(chan struct{})

	wg.Add(2)
	go func() { defer wg.Done(); discLoop.Run(stopDisc) }()
	go func() { defer wg.Done(); procLoop.Run(stopProc) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	close(stopDisc)
	cm.CancelCurrent()
	close(stopProc)
	wg.Wait()

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
}
