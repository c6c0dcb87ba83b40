package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/scmvm/config"
	"github.com/chazu/scmvm/save"
	"github.com/chazu/scmvm/scm"
	"github.com/chazu/scmvm/server"
	"github.com/chazu/scmvm/vm"
)

// run executes the container in real time until the tick budget is spent,
// every thread has ended, or the process is interrupted.
func run(cfg *config.Config, opts options, f *scm.File, logger *zap.Logger) error {
	bounds, err := cfg.BoundsPolicy()
	if err != nil {
		return err
	}

	m := vm.New(f, vm.NewMainModule(),
		vm.WithLogger(logger),
		vm.WithBoundsPolicy(bounds),
		vm.WithTraceThread(cfg.Engine.TraceThread),
	)

	var store *save.Store
	if opts.save || opts.resume {
		store, err = save.Open(cfg.SaveDBPath())
		if err != nil {
			return err
		}
		defer store.Close()
	}

	if opts.resume {
		if err := resume(m, store, cfg.Save.Slot, logger); err != nil {
			return err
		}
	} else {
		m.StartThread(int32(f.CodeSectionOffset()), false)
	}

	worker := server.NewWorker(m)
	defer worker.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	// without a server the run ends with the tick loop
	runCtx, cancelRun := context.WithCancel(gctx)
	defer cancelRun()
	g.Go(func() error {
		if cfg.Inspect.Addr == "" {
			defer cancelRun()
		}
		return tickLoop(runCtx, worker, cfg.Engine.TickMS, opts.ticks, logger)
	})
	if cfg.Inspect.Addr != "" {
		g.Go(func() error {
			defer cancelRun()
			return server.New(worker, server.WithLogger(logger)).ListenAndServe(runCtx, cfg.Inspect.Addr)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if opts.save {
		snap, err := worker.Snapshot(context.Background())
		if err != nil {
			return err
		}
		id, err := store.Put(cfg.Save.Slot, cfg.ScriptPath(), snap)
		if err != nil {
			return err
		}
		logger.Info("snapshot saved",
			zap.Stringer("id", id),
			zap.String("slot", cfg.Save.Slot),
			zap.Uint64("ticks", snap.Ticks))
	}
	return nil
}

// resume restores the latest snapshot in slot.
func resume(m *vm.Machine, store *save.Store, slot string, logger *zap.Logger) error {
	rec, err := store.Latest(slot)
	if err != nil {
		return fmt.Errorf("resuming slot %q: %w", slot, err)
	}
	snap, err := rec.Snapshot()
	if err != nil {
		return fmt.Errorf("decoding save %s: %w", rec.ID, err)
	}
	if err := m.Restore(snap); err != nil {
		return fmt.Errorf("restoring save %s: %w", rec.ID, err)
	}
	logger.Info("resumed",
		zap.Stringer("id", rec.ID),
		zap.String("slot", slot),
		zap.Time("saved", rec.CreatedAt))
	return nil
}

// tickLoop advances the machine once per tickMS of wall time. A limit of
// zero runs until ctx is done or no threads remain. Thread faults are
// logged by the machine and do not stop the loop.
func tickLoop(ctx context.Context, w *server.Worker, tickMS, limit int, logger *zap.Logger) error {
	ticker := time.NewTicker(time.Duration(tickMS) * time.Millisecond)
	defer ticker.Stop()

	for n := 0; limit == 0 || n < limit; n++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		err := w.Tick(ctx, tickMS)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			logger.Debug("tick faulted", zap.Error(err))
		}

		live, err := w.Do(ctx, func(m *vm.Machine) (any, error) {
			return len(m.Threads()), nil
		})
		if err != nil {
			return nil
		}
		if live.(int) == 0 {
			logger.Info("all threads finished", zap.Int("ticks", n+1))
			return nil
		}
	}
	return nil
}
