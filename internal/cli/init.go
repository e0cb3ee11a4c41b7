package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/libpanel/internal/config"
	"github.com/mesh-intelligence/libpanel/internal/paths"
	"github.com/mesh-intelligence/libpanel/internal/sqlite"
	"github.com/mesh-intelligence/libpanel/pkg/types"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configuration and session directories",
		Long: `Init writes a default config.yaml if none exists and creates the
session database in the data directory. Running it again is harmless.`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}
}

// initResult is the JSON form of the init report.
type initResult struct {
	ConfigFile string `json:"config_file"`
	DataDir    string `json:"data_dir"`
	SessionID  string `json:"session_id"`
	Pending    int    `json:"pending"`
}

func runInit(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer env.close()

	dataDir, err := paths.ResolveDataDir(flags.dataDir, env.cfg.DataDir)
	if err != nil {
		return sysError("resolve data dir: %w", err)
	}

	store := sqlite.NewStore()
	if err := store.Attach(dataDir); err != nil {
		return sysError("initialize session: %w", err)
	}
	res := initResult{
		ConfigFile: filepath.Join(env.configDir, config.FileName),
		DataDir:    dataDir,
		SessionID:  store.SessionID(),
	}
	res.Pending, err = store.PendingCount()
	if err != nil {
		_ = store.Detach()
		return sysError("count drafts: %w", err)
	}
	if err := store.Detach(); err != nil {
		return sysError("finalize session: %w", err)
	}

	return emit(cmd.OutOrStdout(), res, func(w io.Writer) {
		fmt.Fprintln(w, "libpanel initialized")
		fmt.Fprintf(w, "  config:  %s\n", res.ConfigFile)
		fmt.Fprintf(w, "  data:    %s\n", res.DataDir)
		fmt.Fprintf(w, "  session: %s\n", res.SessionID)
		if res.Pending > 0 {
			fmt.Fprintf(w, "  %d unsaved draft(s) pending\n", res.Pending)
		}
	})
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Config prints the settings in effect after merging config.yaml, the
.env file and LIBPANEL_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment()
			if err != nil {
				return err
			}
			defer env.close()

			dataDir, err := paths.ResolveDataDir(flags.dataDir, env.cfg.DataDir)
			if err != nil {
				return sysError("resolve data dir: %w", err)
			}
			effective := env.cfg
			effective.DataDir = dataDir
			return emit(cmd.OutOrStdout(), effective, func(w io.Writer) {
				fmt.Fprintf(w, "# %s\n", filepath.Join(env.configDir, config.FileName))
				writeYAML(w, effective)
			})
		},
	}
}

func writeYAML(w io.Writer, cfg types.Config) {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	_ = enc.Encode(cfg)
	_ = enc.Close()
}
