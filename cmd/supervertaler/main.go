// Command supervertaler drives a translate or proofread run over a TXT
// or DOCX document, assisted by translation memory, termbases, tracked
// changes, and an external LLM.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFatal)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "supervertaler",
		Short:   "CAT-assisted translation and proofreading workbench",
		Version: appVersion,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("profile-dir", defaultProfileDir(), "directory holding api_keys.txt and the embedded database")
	viper.BindPFlag("profile_dir", root.PersistentFlags().Lookup("profile-dir"))
	viper.SetEnvPrefix(configEnvPrefix)
	viper.AutomaticEnv()

	root.AddCommand(newRunCmd())
	root.AddCommand(newTMCmd())
	root.AddCommand(newTermbaseCmd())

	return root
}

const (
	exitCodeSuccess = 0
	exitCodePartial = 1
	exitCodeFatal   = 2
)
