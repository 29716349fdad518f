// Package main provides go-zoo, the registry inspector paired with go-pan.
//
// go-zoo reads the same flat registry file the scheduler writes, lists live
// jobs, resolves tags to process groups, signals them and reads a running
// scheduler's metrics endpoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-pan/internal/zoo"
)

// version is set at build time via ldflags.
var version = "dev"

var registryPath string

var rootCmd = &cobra.Command{
	Use:           "go-zoo",
	Short:         "Inspect and signal jobs recorded in a go-pan registry",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&registryPath, "registry", "a", zoo.DefaultPath(),
		"registry file (default $"+zoo.EnvName+")")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "go-zoo: %v\n", err)
		os.Exit(1)
	}
}

// openRegistry opens the registry named by --registry.
func openRegistry() (*zoo.File, error) {
	return zoo.Open(registryPath)
}
