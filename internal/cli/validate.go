package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the texregress.yaml configuration file",
		Long: `Loads the configuration file, checks it against the schema and reports
missing required fields, invalid values and broken configuration chains.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := a.loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			for _, name := range cfg.CheckConfigurations {
				if !cfg.Known(name) {
					a.log.Warnf("check_configurations names unknown configuration %q", name)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file %q is valid.\n", a.cfgFile)
			return nil
		},
	}
}
