package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newConfigCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Gerenciar o arquivo de configuração",
	}
	cmd.AddCommand(newConfigInitCmd(o))
	return cmd
}

func newConfigInitCmd(o *options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Gravar a configuração atual no arquivo",
		Long: `Writes the effective configuration (file, environment and flags) to the
config file, so later runs need no flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.ephemeral {
				return fmt.Errorf("--ephemeral vale só para uma execução e não é gravado")
			}
			path := o.path()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s já existe: use --force para sobrescrever", path)
			}
			if err := o.cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuração gravada em %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Sobrescrever um arquivo existente")
	return cmd
}
