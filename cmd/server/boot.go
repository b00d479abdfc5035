package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"forecast/infra/config"
	"forecast/infra/logger"
	"forecast/infra/metrics"
	"forecast/infra/sequence"
	entrywal "forecast/infra/wal/entry"
	exitwal "forecast/infra/wal/exit"
	"forecast/service"
	"forecast/snapshot"
)

// node is everything serve and export share: an exchange rebuilt from
// the latest snapshot plus the journal written since.
type node struct {
	cfg     config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
	journal *entrywal.WAL
	outbox  *exitwal.ExitWAL
	ex      *service.Exchange
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	path, err := cmd.Flags().GetString(configFlagName)
	if err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return config.Config{}, nil, errors.Wrap(err, "build logger")
	}
	return cfg, log, nil
}

func boot(ctx context.Context, cfg config.Config, log *zap.Logger) (*node, error) {
	n := &node{cfg: cfg, log: log, metrics: metrics.New()}

	// ---------------- Entry WAL ----------------

	journal, err := entrywal.Open(entrywal.Config{
		Dir:             cfg.Store.JournalDir,
		SegmentSize:     cfg.Journal.SegmentSize,
		SegmentDuration: cfg.Journal.SegmentDuration,
		SyncEveryWrite:  cfg.Journal.SyncEveryWrite,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	n.journal = journal

	// ---------------- Exit WAL ----------------

	outbox, err := exitwal.Open(cfg.Store.OutboxDir)
	if err != nil {
		n.close()
		return nil, err
	}
	n.outbox = outbox
	lastEvent, err := outbox.LastSeq()
	if err != nil {
		n.close()
		return nil, err
	}

	// ---------------- Exchange ----------------

	n.ex = service.NewExchange(
		service.WithLogger(log),
		service.WithMetrics(n.metrics),
		service.WithJournal(journal, sequence.New(0)),
		service.WithOutbox(outbox, sequence.New(lastEvent)),
		service.WithStartingBalance(decimal.NewFromFloat(cfg.Exchange.StartingBalance)),
		service.WithDepth(cfg.Exchange.Depth),
	)

	// ---------------- Snapshot + replay ----------------

	doc, err := snapshot.LoadDir(cfg.Store.SnapshotDir)
	if err != nil {
		n.close()
		return nil, err
	}
	if err := n.ex.Import(doc); err != nil {
		n.close()
		return nil, errors.Wrap(err, "import snapshot")
	}
	if _, err := n.ex.Replay(ctx, cfg.Store.JournalDir, doc.Seq); err != nil {
		n.close()
		return nil, errors.Wrap(err, "replay journal")
	}
	return n, nil
}

func (n *node) close() {
	if n.journal != nil {
		if err := n.journal.Close(); err != nil {
			n.log.Warn("close journal", zap.Error(err))
		}
	}
	if n.outbox != nil {
		if err := n.outbox.Close(); err != nil {
			n.log.Warn("close outbox", zap.Error(err))
		}
	}
}
