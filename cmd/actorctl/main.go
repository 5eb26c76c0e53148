// Command actorctl is the out-of-core developer CLI: project scaffolding,
// schema introspection, and schema export. The generate and watch commands
// are registered but return a not-implemented error. These are thin I/O
// orchestration commands, not part of the RPC runtime itself — see the
// internal/schema package for the document the introspect/openapi commands
// fetch from a running actor.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "actorctl",
		Short: "Scaffolding and schema tooling for actorrpc projects",
	}

	root.AddCommand(
		newInitCmd(),
		newGenerateCmd(),
		newIntrospectCmd(),
		newOpenAPICmd(),
		newWatchCmd(),
	)
	return root
}

func newInitCmd() *cobra.Command {
	var module string
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Scaffold a new actor project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if module == "" {
				return fmt.Errorf("--module is required")
			}
			return scaffoldProject(dir, module)
		},
	}
	cmd.Flags().StringVar(&module, "module", "", "Go module path for the new project")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "generate <package>",
		Short: "Generate client stubs for an actor package (not implemented)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateClientStubs(args[0], out)
		},
	}
	cmd.Flags().StringVar(&out, "out", "client_gen.go", "Output file path")
	return cmd
}

func newIntrospectCmd() *cobra.Command {
	var endpoint string
	cmd := &cobra.Command{
		Use:   "introspect",
		Short: "Fetch and print a running actor's schema document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if endpoint == "" {
				return fmt.Errorf("--endpoint is required")
			}
			return fetchSchema(endpoint, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Actor base URL (schema served at /__schema)")
	return cmd
}

func newOpenAPICmd() *cobra.Command {
	var endpoint, out string
	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Write an actor's schema document to a file (no OpenAPI conversion)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if endpoint == "" {
				return fmt.Errorf("--endpoint is required")
			}
			return exportOpenAPI(endpoint, out)
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Actor base URL (schema served at /__schema)")
	cmd.Flags().StringVar(&out, "out", "openapi.json", "Output file path")
	return cmd
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <package>",
		Short: "Regenerate client stubs on source changes (not implemented)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchAndRegenerate(args[0])
		},
	}
	return cmd
}
