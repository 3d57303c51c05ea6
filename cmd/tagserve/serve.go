package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/bastiangx/tagserve/pkg/completion"
	"github.com/bastiangx/tagserve/pkg/server"
	"github.com/bastiangx/tagserve/pkg/watch"
)

var (
	serveRebuild bool
	serveSave    bool
	metricsAddr  string
)

var serveCmd = &cobra.Command{
	Use:   "serve [file]",
	Short: "Serve completions over msgpack IPC on stdin/stdout",
	Long: `Starts loading the tag file in the background and answers msgpack
requests on stdin. Queries return empty results until the first load finishes.
The file defaults to [tags] source_path.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveRebuild, "rebuild", false, "ignore cached index artifacts on the first load")
	serveCmd.Flags().BoolVar(&serveSave, "save", false, "store the given file as [tags] source_path")
	serveCmd.Flags().StringVar(&metricsAddr, "metrics", "", "serve Prometheus metrics on this address, e.g. :9464")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	src, err := sourceArg(args)
	if err != nil {
		return err
	}
	if serveSave && len(args) > 0 {
		if err := saveSource(src); err != nil {
			log.Warnf("Not saving source: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	p, err := newProvider(reg)
	if err != nil {
		return err
	}
	defer p.Wait()

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: completion.Handler(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("metrics server: %v", err)
			}
		}()
		defer srv.Close()
	}

	p.TriggerLoad(src, serveRebuild || appConfig.Tags.RebuildOnStart)

	if appConfig.Tags.Watch {
		w, err := watch.New(src, appConfig.Tags.WatchDebounce(), func(path string) {
			p.TriggerLoad(path, false)
		}, newLogger("watch"))
		if err != nil {
			log.Warnf("Not watching %s: %v", src, err)
		} else {
			defer w.Close()
			go w.Run(ctx)
		}
	}

	log.Debug("spawning IPC", "source", src, "pid", os.Getpid())
	srv := server.NewServer(p, os.Stdin, os.Stdout, server.Options{
		MaxResults:      appConfig.Search.MaxResults,
		SuggestOnPrefix: appConfig.Search.SuggestOnPrefix,
		MaxTermLength:   appConfig.Search.MaxTermLength,
		Source:          src,
		Logger:          newLogger("server"),
	})
	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
