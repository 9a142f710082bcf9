package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hanpama/fieldgraph/internal/demo"
	"github.com/hanpama/fieldgraph/internal/projector"
	"github.com/hanpama/fieldgraph/internal/protoexport"
	"github.com/hanpama/fieldgraph/internal/schema"
	"github.com/hanpama/fieldgraph/internal/typescript"
)

type schemaFlags struct {
	out        string
	namespaces []string
	pkg        string
	builder    bool
}

func newSchemaCmd() *cobra.Command {
	var sf schemaFlags
	cmd := &cobra.Command{
		Use:       "schema sdl|ts|proto",
		Short:     "Export the registry as GraphQL SDL, TypeScript or protobuf",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"sdl", "ts", "proto"},
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := sf.project()
			if err != nil {
				return err
			}
			switch args[0] {
			case "sdl":
				sdl := schema.Render(schema.FromProjection(p))
				if err := schema.Validate(sdl); err != nil {
					return fmt.Errorf("rendered schema is invalid: %w", err)
				}
				return sf.write(cmd.OutOrStdout(), sdl)
			case "ts":
				ts := typescript.Render(p)
				if sf.builder {
					ts += "\n" + typescript.RenderQueryBuilder(p)
				}
				return sf.write(cmd.OutOrStdout(), ts)
			}
			e, err := protoexport.Build(p, sf.pkg)
			if err != nil {
				return fmt.Errorf("build proto: %w", err)
			}
			if sf.out != "" {
				return protoexport.RenderDir(e, sf.out)
			}
			return protoexport.Render(e, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&sf.out, "out", "o", "", "Output file (sdl, ts) or directory (proto); default stdout")
	f.StringSliceVar(&sf.namespaces, "namespace", nil, "Active namespaces, in lookup order")
	f.StringVar(&sf.pkg, "package", "fieldgraph.demo.v1", "Protobuf package")
	f.BoolVar(&sf.builder, "builder", false, "Append the query builder to TypeScript output")
	return cmd
}

// project builds the demo registry over unseeded memory storage; the
// schema depends only on model metadata.
func (sf *schemaFlags) project() (*projector.Projection, error) {
	s := demo.NewMemStore()
	reg, root, err := newRegistry(s, demo.MemCatalog{Store: s})
	if err != nil {
		return nil, err
	}
	return projector.Project(reg, root, namespaces(sf.namespaces)...)
}

func (sf *schemaFlags) write(stdout io.Writer, doc string) error {
	if sf.out == "" {
		_, err := io.WriteString(stdout, doc)
		return err
	}
	return os.WriteFile(sf.out, []byte(doc), 0644)
}
