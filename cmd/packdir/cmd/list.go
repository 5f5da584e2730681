package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/packdir/packdir"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List packs in the store",
	Long:  "List every available pack pair in the store directory, newest first.",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	packs, err := packdir.ScanDirSorted(getDir())
	if err != nil {
		return err
	}

	for _, p := range packs {
		fmt.Printf("%s\t%d\t%s\n", p.Path, p.Size, p.ModTime.Format("2006-01-02 15:04:05"))
	}

	if len(packs) == 0 {
		fmt.Println("(no packs)")
	}

	return nil
}
