package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Lllllllleong/labslipflow/internal/archive"
)

var archiveCmd = &cobra.Command{
	Use:     "archive",
	Short:   "Zip a directory of rendered files",
	Example: "  slipctl archive --dir ./processed --out results.zip",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dir := viper.GetString("archive.dir")
		dst := viper.GetString("archive.out")
		if dir == "" || dst == "" {
			return errors.New("--dir and --out are required")
		}
		n, err := archive.Directory(dir, dst)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "archived %d files to %s\n", n, dst)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.Flags().StringP("dir", "d", "", "directory to archive")
	archiveCmd.Flags().StringP("out", "o", "", "zip file to write")
	bindFlags(archiveCmd, "archive", "dir", "out")
}
