// Command test_certificates issues PSD2 test certificates described by a
// YAML profile from a throwaway CA.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	var outDir string
	cmd := &cobra.Command{
		Use:   "test_certificates <profile.yaml>",
		Short: "Issue PSD2 test certificates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			profile, err := ParseProfile(data)
			if err != nil {
				return err
			}
			files, err := Generate(profile, outDir)
			if err != nil {
				return err
			}
			for _, f := range files {
				logrus.WithField("file", f).Info("written")
			}
			return nil
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
