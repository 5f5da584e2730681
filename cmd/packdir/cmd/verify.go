package cmd

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/packdir/packdir"
	"github.com/packdir/packdir/packfile"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify pack integrity",
	Long:  "Open every pack pair in the store directory and check its index for corruption.",
	Args:  cobra.NoArgs,
	RunE:  runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	packs, err := packdir.ScanDirSorted(getDir())
	if err != nil {
		return err
	}

	var mu sync.Mutex
	var corrupt int

	p := pool.New().WithMaxGoroutines(runtime.NumCPU())
	for _, info := range packs {
		p.Go(func() {
			pk, err := packfile.Open(info.Path)
			if err != nil {
				mu.Lock()
				corrupt++
				fmt.Fprintf(os.Stderr, "corrupt: %s: %v\n", info.Path, err)
				mu.Unlock()
				return
			}
			mu.Lock()
			fmt.Printf("ok: %s (%d objects)\n", info.Path, pk.Len())
			mu.Unlock()
			pk.Close()
		})
	}
	p.Wait()

	if corrupt > 0 {
		return fmt.Errorf("%d corrupt pack(s)", corrupt)
	}
	return nil
}
