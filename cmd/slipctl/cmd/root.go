package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd is slipctl without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "slipctl",
	Short: "Split lab result documents into per-patient files",
	Long: `slipctl runs the slip pipeline on a local document: it splits the
document into sections, extracts the patient name and code from each, and
writes one docx and one pdf per patient. It can also zip an output folder.

Every flag can be set in a config file or as SLIPCTL_<COMMAND>_<FLAG>.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.slipctl.yaml)")
}

// initConfig reads the config file and SLIPCTL_ environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".slipctl")
	}

	viper.SetEnvPrefix("SLIPCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func bindFlags(cmd *cobra.Command, prefix string, names ...string) {
	for _, name := range names {
		cobra.CheckErr(viper.BindPFlag(prefix+"."+name, cmd.Flags().Lookup(name)))
	}
}
