package cli

import (
	"fmt"
	goruntime "runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Fody v%s (%s/%s, %s)\n", version, goruntime.GOOS, goruntime.GOARCH, goruntime.Version())
		},
	}
}
