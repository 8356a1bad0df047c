// Command semigbr trains a semiparametric gradient-boosted density from a
// configuration file.
//
//	semigbr configurationFile
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	scerr "github.com/YuminosukeSato/semigbr/pkg/errors"
	"github.com/YuminosukeSato/semigbr/pipeline"
)

const usage = "Usage: semigbr configurationFile"

var errUsage = scerr.New(usage)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command line and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout)
	if args == nil {
		// cobra falls back to os.Args on nil
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		if scerr.Is(err, errUsage) {
			fmt.Fprintln(stderr, usage)
		}
		return 1
	}
	return 0
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "semigbr configurationFile",
		Short: "Train a semiparametric gradient-boosted regression",
		Long: "semigbr reads a configuration file, assembles the weighted events of its input\n" +
			"files and fits mu, sigma, n1 and n2 of a double-sided crystal-ball density as\n" +
			"boosted functions of the configured variables.",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errUsage
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []pipeline.Option{pipeline.WithLogOutput(stdout)}
			if runID != "" {
				opts = append(opts, pipeline.WithRunID(runID))
			}
			// failures are already logged with FATAL severity
			_, err := pipeline.Run(args[0], opts...)
			return err
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier stored in the artifacts (default: random UUID)")
	return cmd
}
