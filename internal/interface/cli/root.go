package cli

import (
	"os"

	appconfig "github.com/hatsuki-dev/vispanel/internal/app/config"
	infraConfig "github.com/hatsuki-dev/vispanel/internal/infra/config"
	"github.com/hatsuki-dev/vispanel/internal/interface/cli/version"
	"github.com/spf13/cobra"
)

// globalConfig holds the loaded configuration for all commands.
var globalConfig appconfig.Config

// defaultBaseDir is the directory holding setting.json, overridden by
// VISPANEL_HOME. The default run_base (panel_log/) and run_index_db
// (<run_base>/runs.db) are relative to the working directory, not to it.
const defaultBaseDir = ".vispanel"

func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vispanel",
		Short: "Closed-loop visual proxy driver for GUI-agent turns",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			baseDir := defaultBaseDir
			if home := os.Getenv("VISPANEL_HOME"); home != "" {
				baseDir = home
			}

			cfg, err := infraConfig.LoadSettings(baseDir)
			if err != nil {
				return err
			}
			globalConfig = cfg

			InitGlobalLogger(cfg.StderrLevel())
			InitializeLoggers(GetLogger())
			return nil
		},
		RunE: func(c *cobra.Command, _ []string) error { return c.Help() },
	}

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newToolsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(version.NewCommand())
	return cmd
}
