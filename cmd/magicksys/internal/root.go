package internal

import (
	"errors"
	"fmt"
	"os"

	"github.com/goplus/magicksys"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	verbose     bool
	forceStatic bool
	cgoOut      string
	cgoPackage  string
)

var rootCmd = &cobra.Command{
	Use:   "magicksys",
	Short: "magicksys locates or builds MagickWand for the cgo binding",
	Long: `magicksys looks for an installed MagickWand 7.0-7.1 and prints the directives
needed to link against it. When none is found, or a static build is requested,
the vendored ImageMagick source is built into a private prefix instead.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, modeAuto)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Config file (.yaml, .yml, .toml or .json)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&cgoOut, "cgo-out", "", "Write the resolved #cgo flags to this Go file")
	pf.StringVar(&cgoPackage, "cgo-package", "", "Package clause of the generated cgo file")
	rootCmd.Flags().BoolVar(&forceStatic, "static", false, "Always build the vendored source")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "magicksys:", err)
		var se *magicksys.SubprocessError
		if errors.As(err, &se) {
			fmt.Fprintln(os.Stderr, se.Diagnostics())
		}
		os.Exit(1)
	}
}
