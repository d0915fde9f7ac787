package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestra-io/kestrafs/internal/logging"
	"github.com/kestra-io/kestrafs/internal/metrics"
	"github.com/kestra-io/kestrafs/pkg/fuse"
	"github.com/kestra-io/kestrafs/pkg/kestrafs"
)

var (
	mountMetricsAddr string
	mountAllowOther  bool
	mountDebug       bool
	mountAttrTimeout time.Duration
)

var mountCmd = &cobra.Command{
	Use:   "mount <dir>",
	Short: "Mount the namespace with FUSE",
	Long: `Mount the namespace at <dir>. Files of the namespace appear as regular files;
flows appear under _flows as <id>.yml.

This command blocks until the filesystem is unmounted (Ctrl+C).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("log-format") && os.Getenv("KESTRAFS_LOG_FORMAT") == "" {
			if err := logging.Init(logging.Config{Level: current.cfg.LogLevel, Format: "json"}); err != nil {
				return err
			}
		}

		fs, err := current.filesystem(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if current.cfg.Locked {
			if err := current.schemaFetcher().AutoDownload(ctx); err != nil {
				logging.Warn("schema auto-download", logging.Err(err))
			}
		}

		err = fs.Start(ctx, kestrafs.OpenerFunc(func(_ context.Context, name string, _ []byte) error {
			logging.Info("start page", logging.String("file", name))
			return nil
		}))
		if err != nil {
			return err
		}

		if mountMetricsAddr != "" {
			srv := &http.Server{Addr: mountMetricsAddr, Handler: metrics.Handler()}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logging.Error("metrics server", logging.Err(err))
				}
			}()
			defer srv.Close()
			logging.Info("metrics enabled", logging.String("addr", mountMetricsAddr))
		}

		fsys := fuse.New(fs, fuse.Config{
			Namespace:   current.cfg.Namespace,
			AllowOther:  mountAllowOther,
			Debug:       mountDebug,
			AttrTimeout: mountAttrTimeout,
		})
		server, err := fsys.Mount(args[0])
		if err != nil {
			return err
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			logging.Info("unmounting", logging.String("mountpoint", args[0]))
			if err := server.Unmount(); err != nil {
				logging.Error("unmount", logging.Err(err))
			}
		}()

		server.Wait()
		return nil
	},
}

func init() {
	mountCmd.Flags().StringVar(&mountMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	mountCmd.Flags().BoolVar(&mountAllowOther, "allow-other", false, "Allow other users to access the mount")
	mountCmd.Flags().BoolVar(&mountDebug, "debug-fuse", false, "Log every FUSE request")
	mountCmd.Flags().DurationVar(&mountAttrTimeout, "attr-timeout", 0, "Kernel attribute cache duration")
}
