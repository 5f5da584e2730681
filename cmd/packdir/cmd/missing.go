package cmd

import (
	"fmt"
	"sort"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/packdir/packdir"
)

var missingCmd = &cobra.Command{
	Use:   "missing <digest>...",
	Short: "Find digests absent from the store",
	Long:  "Query every pack for the given digests and print the ones no pack contains.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMissing,
}

func init() {
	rootCmd.AddCommand(missingCmd)
}

func runMissing(cmd *cobra.Command, args []string) (err error) {
	keys := make(packdir.KeySet, len(args))
	for _, arg := range args {
		d, err := digest.Parse(arg)
		if err != nil {
			return fmt.Errorf("invalid digest %q: %w", arg, err)
		}
		keys[d] = struct{}{}
	}

	store, err := packdir.Open(getDir(),
		packdir.WithCacheSize(viper.GetInt("cache_size")),
		packdir.WithRefreshInterval(viper.GetDuration("refresh_interval")),
		packdir.WithDeleteCorrupt(viper.GetBool("delete_corrupt")),
	)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	missing, err := store.GetMissing(keys)
	if err != nil {
		return err
	}

	out := make([]string, 0, len(missing))
	for d := range missing {
		out = append(out, d.String())
	}
	sort.Strings(out)
	for _, d := range out {
		fmt.Println(d)
	}

	return nil
}
