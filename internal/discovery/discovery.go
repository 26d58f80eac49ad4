// Package discovery implements the periodic scan of watch roots (C5): it
// enqueues videos missing a transcript and promotes the head of the
// queue into the processing slot when nothing is current.
package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tassa-yoniso-manasi-karoto/atci/internal/pathmodel"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/queue"
)

const Interval = 2 * time.Second

type Loop struct {
	WatchRoots []string
	Queue      *queue.Queue
	Log        zerolog.Logger

	// OnRootScanned, if set, is called once per watch root after its scan
	// completes — used by the `scan` CLI command to drive a progress bar.
	OnRootScanned func(root string)
}

func New(watchRoots []string, q *queue.Queue, log zerolog.Logger) *Loop {
	return &Loop{WatchRoots: watchRoots, Queue: q, Log: log}
}

// Run ticks every Interval until stop closes.
func (l *Loop) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Tick runs exactly one scan-and-promote cycle; exported so callers
// (including tests and the one-shot `scan` CLI command) can drive it
// synchronously.
func (l *Loop) Tick() {
	for _, root := range l.WatchRoots {
		jobs, err := scanRoot(root)
		if err != nil {
			l.Log.Warn().Err(err).Str("root", root).Msg("discovery scan failed")
			continue
		}
		for _, j := range jobs {
			if err := l.Queue.Enqueue(j); err != nil {
				l.Log.Warn().Err(err).Str("path", j.Path).Msg("enqueue failed")
			}
		}
		if l.OnRootScanned != nil {
			l.OnRootScanned(root)
		}
	}

	if _, ok, _ := l.Queue.PeekCurrent(); !ok {
		if job, promoted, err := l.Queue.PromoteHead(); err != nil {
			l.Log.Warn().Err(err).Msg("promote head failed")
		} else if promoted {
			l.Log.Debug().Str("path", job.Path).Msg("promoted job to current")
		}
	}
}

// scanRoot recursively lists videos under root missing an adjacent .txt,
// in ascending lexicographic order per directory so a directory's videos
// form a contiguous batch.
func scanRoot(root string) ([]queue.Job, error) {
	dirVideos := map[string][]string{}
	var dirOrder []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		if !pathmodel.IsAllowedExtension(ext) {
			return nil
		}
		dir := filepath.Dir(path)
		if _, seen := dirVideos[dir]; !seen {
			dirOrder = append(dirOrder, dir)
		}
		dirVideos[dir] = append(dirVideos[dir], path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(dirOrder)

	var jobs []queue.Job
	for _, dir := range dirOrder {
		videos := dirVideos[dir]
		sort.Strings(videos)
		for _, v := range videos {
			txt := pathmodel.Sidecar(v, ".txt")
			if _, err := os.Stat(txt); err == nil {
				continue // transcript already present
			}
			jobs = append(jobs, queue.Job{ProcessType: queue.ProcessAll, Path: v})
		}
	}
	return jobs, nil
}
