// Package watchcmder provides the watch command for continuous ingestion of
// a directory.
package watchcmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/cliui"
	"github.com/passagehq/passage/pkg/config"
	"github.com/passagehq/passage/pkg/dotdir"
	"github.com/passagehq/passage/pkg/ingest"
	"github.com/passagehq/passage/pkg/logger"
	"github.com/passagehq/passage/pkg/pipeline"
	"github.com/passagehq/passage/pkg/rag"
	"github.com/passagehq/passage/pkg/utils"
)

// debounceWindow collapses the burst of write events most editors emit for a
// single save into one ingestion.
const debounceWindow = 500 * time.Millisecond

type watchCommander struct {
	workers         uint
	storageProvider string
	sqlitePath      string
	vectorProvider  string
	vectorTarget    string
	embedProvider   string
	embedTarget     string
	embedModel      string
	embedDims       uint

	debug     bool
	configDir string
	cfg       *config.Config
	logger    *zap.Logger

	ddm   *dotdir.Manager
	state *dotdir.WatchState

	// mu guards state and pending: onResult runs on pool worker goroutines
	// while the event loop mutates the same maps.
	mu      sync.Mutex
	pending map[string]pendingFile
}

// pendingFile is a queued ingestion whose content hash is promoted into the
// watch state only once the pipeline reports the document indexed. Recording
// the hash at enqueue time would make a restart skip files whose ingestion
// failed.
type pendingFile struct {
	path string
	hash string
}

var watchFlagKeys = []string{
	config.FlagWorkers,
	config.FlagStorageProv,
	config.FlagSQLite,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

const watchLongDesc string = `Watch a directory and ingest files as they change.

Existing files are queued once on startup, then filesystem events drive
continuous ingestion: created and modified files are re-ingested (replacing
the previous version) and removed files are deleted from the pipeline.
Documents are keyed by base filename.

Ingested content hashes are recorded in .passage/watch.json, so restarting
the watcher skips files that have not changed since the previous run.

Ingestion runs on a bounded worker pool; events arriving faster than the
embedding backend can serve are queued, and the queue drains before shutdown
completes. Hidden files and subdirectories are ignored.

Examples:
  passage watch ./docs
  passage watch ./docs --workers 5`

const watchShortDesc string = "Continuously ingest a directory"

func NewWatchCmd() *cobra.Command {
	cmder := &watchCommander{}

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: watchShortDesc,
		Long:  watchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.configDir = configDir

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, watchFlagKeys)

			cmder.cfg = config.FromViper(v)
			return config.Validate(cmder.cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}

			return cmder.run(cmd.Context(), args[0])
		},
	}

	config.AddUintFlag(cmd, config.Flags, config.FlagWorkers, &cmder.workers)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageProv, &cmder.storageProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embedProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embedTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embedModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.embedDims)

	return cmd
}

func (c *watchCommander) run(ctx context.Context, dir string) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watch target: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch target is not a directory: %s", dir)
	}

	c.ddm = dotdir.NewManager()
	dataDir, err := c.ddm.Target(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving data directory: %w", err)
	}

	// Watch state survives restarts: files whose content hash matches the
	// recorded one are not re-queued.
	c.state, err = c.ddm.LoadWatchState(c.configDir)
	if err != nil {
		c.logger.Warn("loading watch state", zap.Error(err))
	}
	if c.state == nil || c.state.Seen == nil {
		c.state = &dotdir.WatchState{Seen: make(map[string]string)}
	}
	c.pending = make(map[string]pendingFile)

	p, err := pipeline.NewIngestion(ctx, c.cfg, dataDir, c.logger)
	if err != nil {
		return fmt.Errorf("assembling pipeline: %w", err)
	}
	defer p.Close()

	pool, err := p.NewPool(c.onResult)
	if err != nil {
		return fmt.Errorf("starting ingestion pool: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		pool.Close()
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		pool.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	queued, unchanged := c.enqueueExisting(dir, pool)
	fmt.Printf("\n  %s Watching %s %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(dir),
		cliui.DimStyle.Render(fmt.Sprintf("(%d existing files queued, %d unchanged)", queued, unchanged)),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	lastQueued := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			pool.Close()
			return ctx.Err()
		case sig := <-sigChan:
			c.logger.Info("received signal, draining ingestion queue", zap.String("signal", sig.String()))
			pool.Close()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				pool.Close()
				return nil
			}
			c.handleEvent(event, pool, lastQueued)
		case err, ok := <-watcher.Errors:
			if !ok {
				pool.Close()
				return nil
			}
			pool.Close()
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// enqueueExisting queues every regular file already in the directory, so a
// fresh watch converges to the directory's current contents. Files whose
// content hash matches the saved watch state were ingested by a previous run
// and are skipped.
func (c *watchCommander) enqueueExisting(dir string, pool *ingest.Pool) (queued, unchanged int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		c.logger.Warn("listing watch directory", zap.Error(err))
		return 0, 0
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		text, err := os.ReadFile(path)
		if err != nil {
			c.logger.Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
			continue
		}

		hash := utils.HashText(string(text))
		c.mu.Lock()
		if c.state.Seen[path] == hash {
			c.mu.Unlock()
			unchanged++
			continue
		}
		c.pending[entry.Name()] = pendingFile{path: path, hash: hash}
		c.mu.Unlock()

		if pool.Enqueue(fileRequest(path, entry.Name(), string(text))) {
			queued++
		} else {
			c.mu.Lock()
			delete(c.pending, entry.Name())
			c.mu.Unlock()
		}
	}
	return queued, unchanged
}

// onResult promotes a pending file's content hash into the persisted watch
// state once its ingestion completes. Failed ingestions leave no record, so a
// restarted watcher retries them.
func (c *watchCommander) onResult(res rag.IngestionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pf, ok := c.pending[res.DocumentID]
	if !ok {
		return
	}
	delete(c.pending, res.DocumentID)

	if res.Status != rag.StatusIndexed {
		c.logger.Warn("ingestion did not complete, will retry on restart",
			zap.String("document_id", res.DocumentID),
			zap.String("status", string(res.Status)),
		)
		return
	}
	c.state.Seen[pf.path] = pf.hash
	c.saveState()
}

func (c *watchCommander) handleEvent(event fsnotify.Event, pool *ingest.Pool, lastQueued map[string]time.Time) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return
	}

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		// An empty re-ingest deletes the document and its index records.
		pool.Enqueue(rag.IngestRequest{DocumentID: name, Filename: name})
		c.mu.Lock()
		delete(c.state.Seen, event.Name)
		c.saveState()
		c.mu.Unlock()
		fmt.Printf("  %s %s %s\n",
			cliui.DimStyle.Render("-"),
			name,
			cliui.DimStyle.Render("(removed)"),
		)
		return
	}

	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	if time.Since(lastQueued[event.Name]) < debounceWindow {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return
	}

	text, err := os.ReadFile(event.Name)
	if err != nil {
		c.logger.Warn("skipping unreadable file", zap.String("path", event.Name), zap.Error(err))
		return
	}

	hash := utils.HashText(string(text))
	c.mu.Lock()
	if c.state.Seen[event.Name] == hash {
		c.mu.Unlock()
		return
	}
	c.pending[name] = pendingFile{path: event.Name, hash: hash}
	c.mu.Unlock()

	lastQueued[event.Name] = time.Now()
	if pool.Enqueue(fileRequest(event.Name, name, string(text))) {
		fmt.Printf("  %s %s\n", cliui.DimStyle.Render("+"), name)
	} else {
		c.mu.Lock()
		delete(c.pending, name)
		c.mu.Unlock()
	}
}

// saveState persists the watch state. Callers hold c.mu.
func (c *watchCommander) saveState() {
	if err := c.ddm.SaveWatchState(c.state, c.configDir); err != nil {
		c.logger.Warn("saving watch state", zap.Error(err))
	}
}

func fileRequest(path, name, text string) rag.IngestRequest {
	return rag.IngestRequest{
		DocumentID: name,
		Text:       text,
		Filename:   name,
		Metadata:   map[string]string{"source_path": path},
	}
}
