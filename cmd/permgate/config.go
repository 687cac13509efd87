package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mobitant/bestfood/internal/config"
)

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config [dir]",
		Short: "Resolve and print the gate configuration",
		Long: `Resolve drift.yaml in dir (default: the enclosing Go module) and print the
gate configuration with all defaults applied.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			r, err := resolveProject(dir)
			if err != nil {
				return err
			}
			if err := r.Gate().Validate(); err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), r)
			return nil
		},
	}
}

// resolveProject resolves dir, or the enclosing module when dir is empty.
func resolveProject(dir string) (*config.Resolved, error) {
	if dir == "" {
		root, err := config.FindProjectRoot()
		if err != nil {
			return nil, err
		}
		dir = root
	}
	return config.Resolve(dir)
}

func printConfig(w io.Writer, r *config.Resolved) {
	fmt.Fprintf(w, "Project: %s (%s)\n", r.AppName, r.AppID)
	fmt.Fprintf(w, "Runtime permissions from API %d\n", r.MinSDK)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Required:")
	for _, p := range r.Required {
		fmt.Fprintf(w, "  %s\n", p)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Dialog:")
	fmt.Fprintf(w, "  %-9s %s\n", "title:", r.Dialog.Title)
	fmt.Fprintf(w, "  %-9s %s\n", "message:", r.Dialog.Message)
	fmt.Fprintf(w, "  %-9s %s\n", "settings:", r.Dialog.Settings)
	fmt.Fprintf(w, "  %-9s %s\n", "cancel:", r.Dialog.Cancel)
	fmt.Fprintf(w, "  %-9s %s\n", "restart:", r.Dialog.Restart)
}
