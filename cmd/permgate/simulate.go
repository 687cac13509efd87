package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mobitant/bestfood/pkg/gate"
	"github.com/mobitant/bestfood/pkg/gate/gatetest"
)

// Answers to the settings prompt.
const (
	choiceAccept  = "accept"
	choiceDecline = "decline"
)

type simulateOptions struct {
	dir     string
	sdk     int
	granted []string
	deny    []string
	short   bool
	empty   bool
	choice  string
}

func simulateCmd() *cobra.Command {
	var opts simulateOptions
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the gate against a scripted host",
		Long: `Run the permission gate of a project against a scripted host and print the
resulting transcript.

Permissions in --granted are already granted when the gate checks them. The
user grants every requested permission except those in --deny. --short drops
the last entry from the result, --empty delivers a result with no entries.
--choice answers the settings prompt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.dir, "dir", "", "Project directory (default: enclosing Go module)")
	cmd.Flags().IntVar(&opts.sdk, "sdk", 30, "Host API level")
	cmd.Flags().StringSliceVar(&opts.granted, "granted", nil, "Permissions granted before the check")
	cmd.Flags().StringSliceVar(&opts.deny, "deny", nil, "Permissions the user denies")
	cmd.Flags().BoolVar(&opts.short, "short", false, "Drop the last entry of the result")
	cmd.Flags().BoolVar(&opts.empty, "empty", false, "Deliver a result with no entries")
	cmd.Flags().StringVar(&opts.choice, "choice", "", "Answer to the settings prompt (accept|decline)")
	return cmd
}

func runSimulate(ctx context.Context, w io.Writer, opts simulateOptions) error {
	switch opts.choice {
	case "", choiceAccept, choiceDecline:
	default:
		return fmt.Errorf("invalid --choice %q (want %s or %s)", opts.choice, choiceAccept, choiceDecline)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r, err := resolveProject(opts.dir)
	if err != nil {
		return err
	}
	cfg := r.Gate()

	statuses := make(map[gate.Permission]gate.GrantState, len(opts.granted))
	for _, p := range opts.granted {
		statuses[gate.Permission(p)] = gate.Granted
	}
	host := &gatetest.Host{
		SDK:      opts.sdk,
		Statuses: statuses,
		OnRequest: func(req gate.Request) {
			fmt.Fprintf(w, "request %s code=%d %s\n", req.Token, gate.RequestCode, joinPermissions(req.Permissions))
		},
	}
	ui := &transcriptUI{w: w}

	g, err := gate.New(cfg, host, ui)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "sdk %d (runtime permissions from %d)\n", opts.sdk, cfg.MinSDK)
	if err := g.Start(ctx); err != nil {
		return err
	}

	if req, ok := host.LastRequest(); ok {
		ev := answer(req, opts)
		fmt.Fprintf(w, "result %s%s\n", ev.Token, formatResults(ev.Results))
		if !g.HandleResult(ev) {
			fmt.Fprintln(w, "result ignored")
		}
	}

	if g.State() == gate.StateDenied {
		switch opts.choice {
		case choiceAccept:
			fmt.Fprintln(w, "user accepts settings")
			if err := g.AcceptSettings(ctx); err != nil {
				return err
			}
		case choiceDecline:
			fmt.Fprintln(w, "user declines settings")
			if err := g.DeclineSettings(); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(w, "state %s\n", g.State())
	return nil
}

// answer builds the simulated user's response to req.
func answer(req gate.Request, opts simulateOptions) gate.ResultEvent {
	if opts.empty {
		return gate.ResultEvent{Token: req.Token}
	}
	denied := make(map[gate.Permission]bool, len(opts.deny))
	for _, p := range opts.deny {
		denied[gate.Permission(p)] = true
	}
	var granted []gate.Permission
	for _, p := range req.Permissions {
		if !denied[p] {
			granted = append(granted, p)
		}
	}
	ev := gatetest.Answer(req, granted...)
	if opts.short && len(ev.Results) > 0 {
		ev.Results = ev.Results[:len(ev.Results)-1]
	}
	return ev
}

func joinPermissions(perms []gate.Permission) string {
	ids := make([]string, len(perms))
	for i, p := range perms {
		ids[i] = string(p)
	}
	return "[" + strings.Join(ids, " ") + "]"
}

func formatResults(results []gate.GrantResult) string {
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, " %s=%s", r.Permission, r.State)
	}
	return b.String()
}

// transcriptUI prints every gate.UI call and records it.
type transcriptUI struct {
	gatetest.UI
	w io.Writer
}

func (u *transcriptUI) OpenMain() {
	fmt.Fprintln(u.w, "ui open main screen")
	u.UI.OpenMain()
}

func (u *transcriptUI) ShowSettingsPrompt(p gate.SettingsPrompt) {
	fmt.Fprintf(u.w, "ui prompt %q [%s|%s]\n", p.Title, p.SettingsLabel, p.CancelLabel)
	u.UI.ShowSettingsPrompt(p)
}

func (u *transcriptUI) Toast(message string) {
	fmt.Fprintf(u.w, "ui toast %q\n", message)
	u.UI.Toast(message)
}

func (u *transcriptUI) Finish() {
	fmt.Fprintln(u.w, "ui finish")
	u.UI.Finish()
}

func (u *transcriptUI) OpenAppSettings(packageID string) error {
	fmt.Fprintf(u.w, "ui open app settings %s\n", gate.SettingsURI(packageID))
	return u.UI.OpenAppSettings(packageID)
}
