package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fcrepo/ocfl-persistence/pkg/config"
	"github.com/fcrepo/ocfl-persistence/pkg/persist"
)

// sessionCmd is the parent for operator tooling that inspects
// persistence-core state without starting the server.
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect persistence state",
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <resource-id>",
	Short: "Resolve a resource id against the configured Fedora<->OCFL Index",
	Long: `Resolve a resource id against the configured Fedora<->OCFL Index
backend and print its current committed mapping: the OCFL object id that
stores it, the RID that roots that object, and whether it is an archival
group root.

This opens the configured index backend directly (not through a running
server), performs a single read-only lookup, and closes it. It does not
start the Session Manager and cannot see another process's in-flight,
uncommitted session state.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionInspect,
}

func init() {
	sessionCmd.AddCommand(sessionInspectCmd)
}

func runSessionInspect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := cmd.Context()
	idx, closeIdx, err := buildIndex(ctx, cfg.Index)
	if err != nil {
		return fmt.Errorf("failed to open index backend: %w", err)
	}
	defer closeIdx()

	rid := persist.RID(args[0])
	mapping, err := idx.Get(ctx, "", rid)
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	fmt.Printf("resource_id:   %s\n", mapping.RID)
	fmt.Printf("ocfl_object_id: %s\n", mapping.OCFLID)
	fmt.Printf("root_rid:      %s\n", mapping.RootRID)
	fmt.Printf("is_ag_root:    %t\n", mapping.IsAGRoot)
	return nil
}
