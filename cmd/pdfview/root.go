package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MalithGihan/pdfview/internal/config"
	"github.com/MalithGihan/pdfview/internal/engine"
	_ "github.com/MalithGihan/pdfview/internal/engine/mupdf"
	_ "github.com/MalithGihan/pdfview/internal/engine/outline"
	"github.com/MalithGihan/pdfview/internal/observability"
	"github.com/MalithGihan/pdfview/internal/source"
)

type app struct {
	cfgFile string
	cfg     *config.Config
	log     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "pdfview",
		Short:         "Serve and render the first page of PDF documents.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.New(), a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = observability.InitializeLogger(cfg.Logger)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			observability.Sync()
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	root.AddCommand(newServeCmd(a), newRenderCmd(a))
	return root
}

// sources resolves local paths under the documents root and remote documents
// on the allowed hosts only.
func (a *app) sources() (source.Auto, error) {
	files, err := source.NewFS(a.cfg.Documents.Root)
	if err != nil {
		return source.Auto{}, err
	}
	srcs := source.Auto{Files: files}
	if len(a.cfg.Documents.AllowedHosts) > 0 {
		web := source.NewHTTP(nil, a.cfg.Documents.AllowedHosts...)
		web.MaxBytes = a.cfg.Documents.MaxBytes
		srcs.HTTP = web
	}
	return srcs, nil
}

// runtime wires the configured engine to the document sources.
func (a *app) runtime(srcs source.Auto) (*engine.Runtime, error) {
	factory, err := engine.Lookup(a.cfg.Engine.Name)
	if err != nil {
		return nil, err
	}
	return engine.NewRuntime(factory, engine.Config{
		Source: srcs,
		DPI:    a.cfg.Engine.DPI,
	}, a.cfg.Engine.Workers, a.log), nil
}
