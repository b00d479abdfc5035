package main

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"forecast/api/grpcserver"
	"forecast/infra/config"
	"forecast/infra/kafka"
	"forecast/jobs/broadcaster"
	"forecast/snapshot"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the exchange gRPC server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, log)
	},
}

func newPublisher(cfg config.KafkaConfig) (broadcaster.Publisher, error) {
	if cfg.Client == "kafka-go" {
		return kafka.NewProducer(cfg.Brokers, cfg.Topic), nil
	}
	return broadcaster.NewSaramaPublisher(cfg.Brokers, cfg.Topic)
}

func serve(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	n, err := boot(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer n.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// ---------------- Background Jobs ----------------

	writer := snapshot.NewWriter(cfg.Store.SnapshotDir, cfg.Snapshot.Keep)
	jobs, err := n.ex.StartSnapshotJob(ctx, writer, cfg.Snapshot.Interval)
	if err != nil {
		return err
	}

	if cfg.Kafka.Enabled {
		pub, err := newPublisher(cfg.Kafka)
		if err != nil {
			return err
		}
		bc := broadcaster.New(n.outbox, pub,
			broadcaster.WithLogger(log.Named("broadcaster")),
			broadcaster.WithMetrics(n.metrics),
			broadcaster.WithInterval(cfg.Kafka.PollInterval),
			broadcaster.WithMaxRetries(cfg.Kafka.MaxRetries),
		)
		done := make(chan struct{})
		go func() {
			defer close(done)
			bc.Run(ctx)
		}()
		defer func() {
			<-done
			if err := bc.Close(); err != nil {
				log.Warn("close publisher", zap.Error(err))
			}
		}()
	}

	// ---------------- Metrics ----------------

	mux := http.NewServeMux()
	mux.Handle("/metrics", n.metrics.Handler())
	metricsSrv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server", zap.Error(err))
		}
	}()

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", cfg.Server.GRPCAddr)
	}
	grpcSrv := grpc.NewServer()
	grpcserver.RegisterExchangeServer(grpcSrv, grpcserver.NewServer(n.ex, log.Named("grpc")))

	serveErr := make(chan error, 1)
	go func() { serveErr <- grpcSrv.Serve(lis) }()
	log.Info("exchange running",
		zap.String("grpc", cfg.Server.GRPCAddr),
		zap.String("metrics", cfg.Server.MetricsAddr),
		zap.Bool("kafka", cfg.Kafka.Enabled))

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		log.Error("gRPC server exited", zap.Error(err))
	}

	// ---------------- Shutdown ----------------

	cancel()
	grpcSrv.GracefulStop()
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	_ = metricsSrv.Shutdown(shutdownCtx)

	<-jobs.Stop().Done()
	if path, err := n.ex.SnapshotOnce(writer); err != nil {
		log.Error("final snapshot", zap.Error(err))
	} else {
		log.Info("final snapshot written", zap.String("path", path))
	}
	return nil
}
