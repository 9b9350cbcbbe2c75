package watcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/errors"
)

// Folders inside the consume directory that processed files move to.
const (
	DoneDir   = ".done"
	FailedDir = ".failed"
)

// Ingester stores one uploaded document. *archive.Archive satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, raw []byte) (docid.DocID, error)
}

// Status is the outcome of consuming one file.
type Status string

const (
	// StatusIngested means the file was stored and moved to .done.
	StatusIngested Status = "ingested"
	// StatusRejected means the file is not a usable document and moved to .failed.
	StatusRejected Status = "rejected"
	// StatusFailed means every attempt failed and the file stays in place.
	StatusFailed Status = "failed"
	// StatusDeferred means storage kept failing and the consumer is
	// pausing; the file stays in place for a later sweep.
	StatusDeferred Status = "deferred"
	// StatusSkipped means the file is not a PDF or disappeared.
	StatusSkipped Status = "skipped"
)

// Result describes what happened to one file.
type Result struct {
	Name   string
	Status Status
	ID     docid.DocID
	Dest   string
	Err    error
}

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	// Dir is the consume folder.
	Dir string

	// MaxFileSize rejects larger files. Zero means no limit.
	MaxFileSize int64

	// Retry controls retries of storage and index failures.
	Retry errors.RetryConfig

	// MaxFailures is how many files may fail in a row before the consumer
	// pauses. Zero means 5.
	MaxFailures int

	// Cooldown is how long the consumer pauses, and how often files left
	// in place are swept again. Zero means 30s.
	Cooldown time.Duration

	// Watch configures the directory watcher.
	Watch Options
}

// Consumer ingests PDFs dropped into a folder.
type Consumer struct {
	cfg      ConsumerConfig
	ingester Ingester
	logger   *slog.Logger
	breaker  *errors.CircuitBreaker

	// leftover is set when a file stayed in place and needs another sweep.
	leftover atomic.Bool

	ingested atomic.Int64
	rejected atomic.Int64
	failed   atomic.Int64
	deferred atomic.Int64
}

// ConsumerStats counts processed files since the consumer was created.
type ConsumerStats struct {
	Ingested int64
	Rejected int64
	Failed   int64
	Deferred int64
}

// NewConsumer creates the consume folder and its .done and .failed
// subfolders when missing.
func NewConsumer(ing Ingester, cfg ConsumerConfig) (*Consumer, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("consume directory is not set")
	}
	for _, sub := range []string{"", DoneDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(cfg.Dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create consume directory: %w", err)
		}
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = errors.DefaultRetryConfig()
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Consumer{
		cfg:      cfg,
		ingester: ing,
		logger:   slog.Default().With(slog.String("component", "consume")),
		breaker: errors.NewCircuitBreaker("consume",
			errors.WithMaxFailures(cfg.MaxFailures),
			errors.WithResetTimeout(cfg.Cooldown)),
	}, nil
}

// Run sweeps files already in the folder, then ingests new ones as they
// settle. It returns nil when ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	w, err := NewDirWatcher(c.cfg.Watch)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	startErr := make(chan error, 1)
	go func() { startErr <- w.Start(ctx, c.cfg.Dir) }()

	c.logger.Info("consume watcher started",
		slog.String("dir", c.cfg.Dir),
		slog.String("watcher", w.WatcherType()))

	if _, err := c.Sweep(ctx); err != nil {
		return err
	}

	resweep := time.NewTicker(c.cfg.Cooldown)
	defer resweep.Stop()

	errs := w.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-resweep.C:
			if c.leftover.Swap(false) {
				if _, err := c.Sweep(ctx); err != nil {
					c.logger.Warn("consume resweep failed", slog.String("error", err.Error()))
				}
			}
		case err := <-startErr:
			if err == nil || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("consume watcher: %w", err)
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			for _, e := range batch {
				if e.Operation == OpCreate || e.Operation == OpModify {
					c.ProcessFile(ctx, e.Name)
				}
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			c.logger.Warn("consume watcher error", slog.String("error", err.Error()))
		}
	}
}

// Sweep processes every file currently in the folder, in name order.
func (c *Consumer) Sweep(ctx context.Context) ([]Result, error) {
	entries, err := os.ReadDir(c.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("read consume directory: %w", err)
	}
	var results []Result
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		results = append(results, c.ProcessFile(ctx, e.Name()))
	}
	return results, nil
}

// ProcessFile ingests one file of the folder and moves it aside.
func (c *Consumer) ProcessFile(ctx context.Context, name string) Result {
	res := Result{Name: name, Status: StatusSkipped}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return res
	}
	path := filepath.Join(c.cfg.Dir, name)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		// Already moved by an earlier event or sweep.
		return res
	}

	start := time.Now()
	if c.cfg.MaxFileSize > 0 && info.Size() > c.cfg.MaxFileSize {
		err = errors.UnsupportedFormat(
			fmt.Sprintf("file is %d bytes, limit is %d", info.Size(), c.cfg.MaxFileSize), nil)
	} else {
		var raw []byte
		raw, err = os.ReadFile(path)
		if err != nil {
			err = errors.StorageFailure("read consume file", err)
		} else {
			err = c.breaker.Execute(func() error {
				var ingestErr error
				res.ID, ingestErr = errors.RetryWithResult(ctx, c.cfg.Retry, func() (docid.DocID, error) {
					return c.ingester.Ingest(ctx, raw)
				})
				return ingestErr
			})
		}
	}

	switch {
	case err == nil:
		res.Status = StatusIngested
		res.Dest, res.Err = c.moveTo(DoneDir, name)
		c.ingested.Add(1)
		c.logger.Info("consumed document",
			slog.String("file", name),
			slog.String("id", res.ID.String()),
			slog.Duration("duration", time.Since(start)))
	case errors.IsKind(err, errors.KindUnsupportedFormat):
		res.Status = StatusRejected
		res.Err = err
		if dest, mvErr := c.moveTo(FailedDir, name); mvErr == nil {
			res.Dest = dest
		}
		c.rejected.Add(1)
		c.logger.Warn("rejected consume file",
			slog.String("file", name),
			slog.String("error", err.Error()))
	case stderrors.Is(err, errors.ErrCircuitOpen):
		res.Status = StatusDeferred
		res.Err = err
		c.deferred.Add(1)
		c.leftover.Store(true)
		c.logger.Debug("consume paused after repeated failures",
			slog.String("file", name))
	default:
		res.Status = StatusFailed
		res.Err = err
		c.failed.Add(1)
		c.leftover.Store(true)
		c.logger.Error("consume file failed, leaving in place",
			slog.String("file", name),
			slog.String("error", err.Error()))
	}
	return res
}

// Stats returns the counters of processed files.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Ingested: c.ingested.Load(),
		Rejected: c.rejected.Load(),
		Failed:   c.failed.Load(),
		Deferred: c.deferred.Load(),
	}
}

// moveTo renames name into sub, adding a numeric suffix when the target exists.
func (c *Consumer) moveTo(sub, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	dest := filepath.Join(c.cfg.Dir, sub, name)
	for n := 1; ; n++ {
		if _, err := os.Lstat(dest); os.IsNotExist(err) {
			break
		}
		dest = filepath.Join(c.cfg.Dir, sub, fmt.Sprintf("%s-%d%s", stem, n, ext))
	}
	if err := os.Rename(filepath.Join(c.cfg.Dir, name), dest); err != nil {
		c.logger.Error("move consume file",
			slog.String("file", name),
			slog.String("dest", dest),
			slog.String("error", err.Error()))
		return "", err
	}
	return dest, nil
}
