package main

import (
	"fmt"

	"github.com/dbcrossbar/dbcrossbar/pkg/config"
	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
	"github.com/spf13/cobra"
)

// newConfigCmd implements `config add`/`config rm`: both
// operate on the "temporary" list in dbcrossbar.toml, a stored list of
// scratch locator prefixes. `cp` does not read this list; it uses only
// what is passed with --temporary.
func newConfigCmd() *cobra.Command {
	parent := &cobra.Command{
		Use:   "config",
		Short: "Manage dbcrossbar.toml, the persistent temporary-locator allowlist",
	}
	parent.AddCommand(newConfigAddCmd(), newConfigRmCmd(), newConfigListCmd())
	return parent
}

func newConfigAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add PREFIX",
		Short: "Allow PREFIX (e.g. gs://bucket/path) as an implicit temporary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, cfg, err := loadConfigForEdit()
			if err != nil {
				return err
			}
			cfg.AddTemporary(args[0])
			return cfg.Save(dir)
		},
	}
}

func newConfigRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm PREFIX",
		Short: "Remove PREFIX from the implicit-temporary allowlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, cfg, err := loadConfigForEdit()
			if err != nil {
				return err
			}
			if !cfg.RemoveTemporary(args[0]) {
				return dbcerrors.Newf(dbcerrors.KindNotFound, "%s is not in the temporary allowlist", args[0])
			}
			return cfg.Save(dir)
		},
	}
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the current temporary-locator allowlist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			cfg, err := config.LoadDBCrossbarConfig(dir)
			if err != nil {
				return err
			}
			for _, prefix := range cfg.Temporary {
				fmt.Println(prefix)
			}
			return nil
		},
	}
}

func loadConfigForEdit() (string, *config.DBCrossbarConfig, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", nil, err
	}
	cfg, err := config.LoadDBCrossbarConfig(dir)
	if err != nil {
		return "", nil, err
	}
	return dir, cfg, nil
}
