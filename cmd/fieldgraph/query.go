package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hanpama/fieldgraph/internal/demo"
	"github.com/hanpama/fieldgraph/internal/executor"
	"github.com/hanpama/fieldgraph/internal/gateway"
	"github.com/hanpama/fieldgraph/internal/grpcapi"
	"github.com/hanpama/fieldgraph/internal/reqid"
)

var errQueryFailed = errors.New("query failed")

type queryFlags struct {
	file       string
	variables  string
	operation  string
	structural bool
	namespaces []string
	as         uint
	admin      bool
	remote     string
	compact    bool
}

func newQueryCmd() *cobra.Command {
	var qf queryFlags
	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Run one query and print the result as JSON",
		Long: `Run one query against the configured storage, or against a running
server's gRPC endpoint with --remote. The query comes from the argument,
from --file, or from stdin when neither is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := qf.request(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			var res gateway.Response
			if qf.remote != "" {
				res, err = qf.runRemote(cmd, req)
			} else {
				res, err = qf.runLocal(cmd, req)
			}
			if err != nil {
				return err
			}
			if err := qf.print(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if len(res.Errors) > 0 {
				return errQueryFailed
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&qf.file, "file", "f", "", "Read the query from a file")
	f.StringVar(&qf.variables, "variables", "", "Variables as a JSON object")
	f.StringVar(&qf.operation, "operation", "", "Operation name")
	f.BoolVar(&qf.structural, "structural", false, "Treat the query as a JSON structural query")
	f.StringSliceVar(&qf.namespaces, "namespace", nil, "Active namespaces, in lookup order")
	f.UintVar(&qf.as, "as", 0, "Run as the user with this id")
	f.BoolVar(&qf.admin, "admin", false, "Run with the admin role")
	f.StringVar(&qf.remote, "remote", "", "Send the query to this gRPC address instead")
	f.BoolVar(&qf.compact, "compact", false, "Print single-line JSON")
	return cmd
}

func (qf *queryFlags) request(stdin io.Reader, args []string) (gateway.Request, error) {
	var (
		src []byte
		err error
	)
	switch {
	case len(args) == 1:
		src = []byte(args[0])
	case qf.file != "":
		src, err = os.ReadFile(qf.file)
	default:
		src, err = io.ReadAll(stdin)
	}
	if err != nil {
		return gateway.Request{}, fmt.Errorf("read query: %w", err)
	}

	req := gateway.Request{Query: string(src), OperationName: qf.operation}
	if qf.structural {
		var q any
		if err := json.Unmarshal(src, &q); err != nil {
			return gateway.Request{}, fmt.Errorf("structural query: %w", err)
		}
		req.Query = q
	}
	if qf.variables != "" {
		if err := json.Unmarshal([]byte(qf.variables), &req.Variables); err != nil {
			return gateway.Request{}, fmt.Errorf("variables: %w", err)
		}
	}
	return req, nil
}

func (qf *queryFlags) runLocal(cmd *cobra.Command, req gateway.Request) (gateway.Response, error) {
	ctx := cmd.Context()
	var opts []gateway.Option
	if len(qf.namespaces) > 0 {
		opts = append(opts, gateway.WithCallOptions(executor.WithNamespaces(namespaces(qf.namespaces)...)))
	}
	a, err := setup(ctx, cmd, opts...)
	if err != nil {
		return gateway.Response{}, err
	}
	defer a.Close()

	if qf.as > 0 {
		ctx = demo.NewContext(ctx, &demo.Viewer{UserID: qf.as, Admin: qf.admin})
	}
	ctx, _ = reqid.NewContext(ctx)
	return a.gw.Execute(ctx, req), nil
}

func (qf *queryFlags) runRemote(cmd *cobra.Command, req gateway.Request) (gateway.Response, error) {
	c, err := grpcapi.Dial(qf.remote)
	if err != nil {
		return gateway.Response{}, err
	}
	defer c.Close()

	ctx, _ := reqid.NewContext(cmd.Context())
	data, err := c.Execute(ctx, req)
	if err != nil {
		return gateway.Response{Errors: []gateway.Error{{Message: err.Error()}}}, nil
	}
	return gateway.Response{Data: data}, nil
}

func (qf *queryFlags) print(w io.Writer, res gateway.Response) error {
	enc := json.NewEncoder(w)
	if !qf.compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(res)
}
