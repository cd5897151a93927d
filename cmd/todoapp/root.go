package main

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/suzukibelltree/SampleToDoApp/internal/config"
	"github.com/suzukibelltree/SampleToDoApp/internal/logging"
)

// app is what every subcommand starts from.
type app struct {
	cfg    *config.Config
	log    *logrus.Logger
	closer io.Closer
}

func newRootCmd() *cobra.Command {
	var configPath string
	a := &app{}

	root := &cobra.Command{
		Use:           "todoapp",
		Short:         "Personal to-do list backed by a local task store",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log, closer, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			a.cfg, a.log, a.closer = cfg, log, closer
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closer != nil {
				return a.closer.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "todoapp.toml", "path to the TOML config file")

	root.AddCommand(newServeCmd(a), newMigrateCmd(a), newTokenCmd(a))
	return root
}
