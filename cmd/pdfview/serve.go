package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MalithGihan/pdfview/internal/server"
	"github.com/MalithGihan/pdfview/internal/source"
	"github.com/MalithGihan/pdfview/internal/store"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP viewer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	srcs, err := a.sources()
	if err != nil {
		return err
	}
	rt, err := a.runtime(srcs)
	if err != nil {
		return err
	}
	defer rt.Close()
	viewers := store.New()
	defer viewers.Close()

	srv := server.New(rt, viewers, server.Options{
		DocumentsRoot:   a.cfg.Documents.Root,
		DefaultDocument: source.Location(a.cfg.Documents.Default),
		SettleTimeout:   a.cfg.Server.SettleTimeout,
		DPI:             a.cfg.Engine.DPI,
		Sources:         srcs,
		Logger:          a.log,
	})
	httpServer := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.log.Info("pdfview listening",
			zap.String("addr", httpServer.Addr),
			zap.String("engine", a.cfg.Engine.Name),
			zap.String("documents", a.cfg.Documents.Root))
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
