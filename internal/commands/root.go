// Package commands implements the taskdeck CLI over cobra. Each command
// wires the session manager and sync coordinator on demand, so state
// under the configured directory is only touched when a command runs.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "taskdeck",
	Short: "A CLI task manager that syncs with the taskdeck service",
	Long: `taskdeck is a command-line task manager backed by the taskdeck service.
Tasks are cached locally, so listing and creating keep working while the
service is unreachable; offline changes sync on the next flush.`,
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(oauthCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(delayCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("taskdeck %s (commit %s, built %s)\n", version, commit, date)
	},
}
