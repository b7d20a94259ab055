// Package backendcmder provides the backend command for inspecting and
// pinning the transport used by the spool CLI.
package backendcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spoolhq/spool/pkg/adapter"
	"github.com/spoolhq/spool/pkg/backend"
	"github.com/spoolhq/spool/pkg/cliui"
	"github.com/spoolhq/spool/pkg/dotdir"
)

const backendLongDesc string = `Inspect and pin the backend transport.

The adapter normally picks a backend for each call: the synced cache or
stream first, with live API fallback. 'backend use' persists a choice in
.spool/preferences.json so later invocations start from it; 'backend
clear' removes it.

Use a transport mode name to change how the CLI connects:
  direct    Local store plus live API fallback
  stream    Persistent-stream transport against a spool server
  external  Plain HTTP transport against a spool server

Or a backend kind to pin one backend with no fallback:
  cache, inprocess, stream, http

Examples:
  spool backend show
  spool backend use stream
  spool backend use cache
  spool backend clear`

const backendShortDesc string = "Inspect and pin the backend transport"

func NewBackendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backend",
		Short: backendShortDesc,
		Long:  backendLongDesc,
	}

	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newUseCmd())
	cmd.AddCommand(newClearCmd())

	return cmd
}

var transportModes = []string{
	string(adapter.ModeDirect),
	string(adapter.ModeStream),
	string(adapter.ModeExternal),
}

var backendKinds = []string{
	string(backend.KindCache),
	string(backend.KindInProcess),
	string(backend.KindStream),
	string(backend.KindHTTP),
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the persisted backend preference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runShow(configDir)
		},
	}
}

func newUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <mode-or-kind>",
		Short: "Persist a transport mode or pinned backend kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runUse(args[0], configDir)
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return append(append([]string{}, transportModes...), backendKinds...), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the persisted backend preference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runClear(configDir)
		},
	}
}

func runShow(configDir string) error {
	prefs, err := dotdir.NewManager().LoadPreferences(configDir)
	if err != nil {
		return err
	}

	if prefs == nil || (prefs.Mode == "" && prefs.Backend == "") {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No backend preference saved."))
		return nil
	}

	fmt.Println()
	if prefs.Mode != "" {
		fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("Mode:"), cliui.ValueStyle.Render(prefs.Mode))
	}
	if prefs.Backend != "" {
		fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("Pinned backend:"), cliui.ValueStyle.Render(prefs.Backend))
	}
	fmt.Println()

	return nil
}

func runUse(name, configDir string) error {
	manager := dotdir.NewManager()

	prefs, err := manager.LoadPreferences(configDir)
	if err != nil {
		return err
	}
	if prefs == nil {
		prefs = &dotdir.Preferences{}
	}

	switch {
	case contains(transportModes, name):
		prefs.Mode = name
		prefs.Backend = ""
	case contains(backendKinds, name):
		prefs.Backend = name
	default:
		return fmt.Errorf("unknown backend %q (modes: %v, kinds: %v)", name, transportModes, backendKinds)
	}

	if err := manager.SavePreferences(prefs, configDir); err != nil {
		return err
	}

	fmt.Printf("\n  %s Using %s\n\n", cliui.SuccessMark, cliui.ValueStyle.Render(name))
	return nil
}

func runClear(configDir string) error {
	if err := dotdir.NewManager().ClearPreferences(configDir); err != nil {
		return err
	}

	fmt.Printf("\n  %s Backend preference cleared\n\n", cliui.SuccessMark)
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
