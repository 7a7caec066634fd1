package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/transq/config"
	"github.com/bnema/transq/internal/adapter/contentstore/gcs"
	"github.com/bnema/transq/internal/adapter/contentstore/local"
	"github.com/bnema/transq/internal/adapter/contentstore/s3"
	"github.com/bnema/transq/internal/adapter/contentstore/sftp"
	"github.com/bnema/transq/internal/adapter/converter/iw3"
	HTTPAdapter "github.com/bnema/transq/internal/adapter/http"
	"github.com/bnema/transq/internal/adapter/http/validation"
	"github.com/bnema/transq/internal/adapter/process"
	"github.com/bnema/transq/internal/adapter/storage/jsonfile"
	sqlitestore "github.com/bnema/transq/internal/adapter/storage/sqlite"
	"github.com/bnema/transq/internal/infrastructure/instance"
	"github.com/bnema/transq/internal/infrastructure/logger"
	"github.com/bnema/transq/internal/port"
	"github.com/bnema/transq/internal/service"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion worker and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func openSnapshotStore(cfg *config.Config) (port.SnapshotStore, error) {
	if cfg.StateBackend == config.StateSQLite {
		return sqlitestore.NewStore(cfg.DataDir)
	}
	return jsonfile.NewStore(cfg.DataDir)
}

func noClose() error { return nil }

// verifyVideo applies the upload content check to fetched files.
func verifyVideo(rs io.ReadSeeker) error {
	_, allowed, err := validation.ValidateMagicBytes(rs)
	if err != nil {
		return err
	}
	if !allowed {
		return validation.ErrDisallowedFileType
	}
	return nil
}

// openRemoteStore returns a nil store for the local backend.
func openRemoteStore(ctx context.Context, cfg *config.Config) (port.ContentStore, func() error, error) {
	switch cfg.ContentBackend {
	case config.ContentS3:
		store, err := s3.NewStore(s3.Options{
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, noClose, nil
	case config.ContentGCS:
		store, err := gcs.NewStore(ctx, gcs.Options{
			Bucket:          cfg.GCS.Bucket,
			Prefix:          cfg.GCS.Prefix,
			CredentialsFile: cfg.GCS.CredentialsFile,
			SignerEmail:     cfg.GCS.SignerEmail,
			SignerKeyFile:   cfg.GCS.SignerKeyFile,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.ContentSFTP:
		store, err := sftp.NewStore(sftp.Options{
			Addr:           cfg.SFTP.Addr,
			User:           cfg.SFTP.User,
			Password:       cfg.SFTP.Password,
			KeyFile:        cfg.SFTP.KeyFile,
			KnownHostsFile: cfg.SFTP.KnownHostsFile,
			Dir:            cfg.SFTP.Dir,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	return nil, noClose, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger.Configure(os.Stdout, cfg.LogLevel)
	logger.Info.Printf("starting transq %s on port %d (state=%s, content=%s)", version, cfg.Port, cfg.StateBackend, cfg.ContentBackend)

	for _, dir := range []string{cfg.DataDir, cfg.UploadDir, cfg.ConvertedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	lock, err := instance.Acquire(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	snapshots, err := openSnapshotStore(cfg)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer func() { _ = snapshots.Close() }()

	outputs, err := local.NewStore(cfg.ConvertedDir)
	if err != nil {
		return err
	}
	remote, closeRemote, err := openRemoteStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s content store: %w", cfg.ContentBackend, err)
	}
	defer func() { _ = closeRemote() }()

	transformLog, err := process.OpenLogFile(cfg.TransformLogFile)
	if err != nil {
		return err
	}
	defer func() { _ = transformLog.Close() }()

	transformer, err := iw3.NewConverter(cfg.TransformCommand, cfg.TransformArgs, cfg.DataDir)
	if err != nil {
		return err
	}

	eventBus := service.NewEventBus()
	pipeline := service.NewPipeline(snapshots, process.NewController(transformLog), transformer, outputs, eventBus, service.Options{
		UploadDir:       cfg.UploadDir,
		ConvertedDir:    cfg.ConvertedDir,
		MaxStorageBytes: cfg.MaxStorageBytes,
		PollInterval:    cfg.PollInterval,
		TerminateGrace:  cfg.TerminateGrace,
		Remote:          remote,
		LinkTTL:         cfg.DownloadLinkTTL,
	})
	if _, err := pipeline.Recover(ctx); err != nil {
		return fmt.Errorf("recover: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	intake := service.NewIntake(pipeline, cfg.UploadDir)
	fetcher := service.NewFetcher(ctx, intake, service.FetchOptions{
		UploadDir: cfg.UploadDir,
		MaxBytes:  int64(cfg.MaxUploadSizeMB) * 1024 * 1024,
		Verify:    verifyVideo,
	})
	server := HTTPAdapter.NewServer(pipeline, intake, eventBus, HTTPAdapter.ServerOptions{
		APIToken:        cfg.APIToken,
		UploadDir:       cfg.UploadDir,
		MaxUploadSizeMB: cfg.MaxUploadSizeMB,
		Fetcher:         fetcher,
	})
	if cfg.APIToken == "" {
		logger.Warn.Printf("API_TOKEN is not set, the API is open to anyone who can reach port %d", cfg.Port)
	}

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		pipeline.Run(ctx)
	}()

	// request contexts derive from ctx so event streams end on shutdown
	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info.Printf("server listening on %s", addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info.Printf("shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server failed: %w", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error.Printf("http shutdown error: %v", err)
	}

	// downloads are cancelled with ctx; whatever finished is still queued
	fetcher.Wait()

	// the running job is stopped and kept in the snapshot for the next start
	<-workerDone
	logger.Info.Printf("shutdown complete")
	return runErr
}
