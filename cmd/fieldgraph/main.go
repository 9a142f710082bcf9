package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fieldgraph",
		Short: "Serialize object graphs by client-selected fields",
		Long: `fieldgraph serves a field registry over HTTP and gRPC, runs one-off
queries against it and exports its schema as GraphQL SDL, TypeScript or
protobuf. The bundled registry is a small blog domain.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Config file (default: ./fieldgraph.yaml)")
	pf.String("log-level", "info", "Log level: debug, info, warn or error")
	pf.Bool("dev", false, "Human-readable development logging")
	pf.String("db-driver", "memory", "Storage: memory, sqlite or postgres")
	pf.String("db-dsn", "", "Database DSN for sqlite or postgres")
	pf.Int("concurrency", 1, "Concurrent preloads per level")

	root.AddCommand(newServeCmd(), newQueryCmd(), newSchemaCmd())
	return root
}
