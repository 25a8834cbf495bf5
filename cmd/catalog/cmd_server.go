package main

import (
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/catalog/app/routes"
	"github.com/shashiranjanraj/catalog/internal/kernel"
	"github.com/shashiranjanraj/catalog/internal/server"
)

// catalog serve
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cmd.Context())
	},
}

// catalog route:list
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all registered named routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printRoutes(cmd.OutOrStdout())
	},
}

// printRoutes builds the router with placeholder handlers; nothing is
// connected and no handler runs.
func printRoutes(out io.Writer) error {
	r := kernel.NewRouter(kernel.Options{
		API: routes.API{
			Feed:    http.NotFoundHandler(),
			Events:  http.NotFoundHandler(),
			GraphQL: http.NotFoundHandler(),
		},
	})

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "METHOD\tPATH\tNAME")
	fmt.Fprintln(w, "------\t----\t----")
	for _, ri := range r.Routes() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
	}
	return w.Flush()
}
