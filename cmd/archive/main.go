package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultConfigPath = "archive.yaml"

// rootOpts holds the persistent flags shared by every subcommand.
type rootOpts struct {
	configPath string
	as         string
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Print-shop job stage tracker",
		Long:  "Archive tracks print jobs through pre-press, press and post-press, with a full stage history and audit log.",
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to config file (.yaml or .toml)")
	cmd.PersistentFlags().StringVar(&opts.as, "as", os.Getenv("ARCHIVE_USER"), "username to act as (env ARCHIVE_USER)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd(opts))
	cmd.AddCommand(newJobCmd(opts))
	cmd.AddCommand(newStageCmd(opts))
	cmd.AddCommand(newAuditCmd(opts))
	cmd.AddCommand(newBackupCmd(opts))
	cmd.AddCommand(newUserCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "archive %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	// A missing .env is fine; variables may come from the environment.
	_ = godotenv.Load()
	os.Exit(execute(newRootCmd()))
}
