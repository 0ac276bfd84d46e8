// Command sbconfig checks and lists interception files.
//
//	sbconfig --config interception.yaml validate
//	sbconfig --config interception.yaml list [--json]
//	sbconfig --config interception.yaml graph [--format dot]
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
	"github.com/edwardmeng/ServiceBridge-sub001/internal/graph"
)

const configEnv = "SERVICEBRIDGE_CONFIG"

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	var configFile string

	app := cli.NewApp()
	app.Name = "sbconfig"
	app.Usage = "Validate and inspect ServiceBridge interception files"
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "config,c",
			Usage:       "Load interception declarations from `FILE` (yaml, toml or json)",
			EnvVar:      configEnv,
			Destination: &configFile,
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "validate",
			Usage: "Parse the file and check every entry",
			Action: func(c *cli.Context) error {
				registry, err := load(configFile)
				if err != nil {
					return err
				}
				summary := registry.Summary()
				fmt.Fprintf(c.App.Writer, "%s: ok (%d types)\n", configFile, len(summary))
				return nil
			},
		},
		{
			Name:  "graph",
			Usage: "Print the interception graph as text or Graphviz DOT",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "format,f", Value: "text", Usage: "Output `FORMAT`: text or dot"},
			},
			Action: func(c *cli.Context) error {
				registry, err := load(configFile)
				if err != nil {
					return err
				}
				g := buildGraph(registry.Summary())

				switch c.String("format") {
				case "dot":
					return g.WriteDOT(c.App.Writer)
				case "text":
					return g.WriteText(c.App.Writer)
				default:
					return cli.NewExitError(fmt.Sprintf("unknown format %q", c.String("format")), 2)
				}
			},
		},
		{
			Name:  "list",
			Usage: "Print the interceptors declared per type and method",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "json", Usage: "Print the summary as JSON"},
			},
			Action: func(c *cli.Context) error {
				registry, err := load(configFile)
				if err != nil {
					return err
				}
				summary := registry.Summary()

				if c.Bool("json") {
					data, err := json.MarshalIndent(summary, "", "  ")
					if err != nil {
						return cli.NewExitError(err.Error(), 1)
					}
					fmt.Fprintln(c.App.Writer, string(data))
					return nil
				}
				printSummary(c.App.Writer, summary)
				return nil
			},
		},
	}
	return app
}

func load(path string) (*servicebridge.Registry, error) {
	if path == "" {
		return nil, cli.NewExitError("no configuration file given, use --config or "+configEnv, 2)
	}
	registry := servicebridge.NewRegistry()
	if err := registry.LoadFile(path); err != nil {
		return nil, cli.NewExitError(fmt.Sprintf("invalid configuration: %v", err), 3)
	}
	return registry, nil
}

func buildGraph(summary []servicebridge.TypeSummary) *graph.Graph {
	g := graph.New()
	for _, s := range summary {
		g.AddType(s.Type)
		g.AddDeclarations(s.Type, "", s.All...)
		for m, decls := range s.Methods {
			g.AddDeclarations(s.Type, m, decls...)
		}
	}
	return g
}

func printSummary(w io.Writer, summary []servicebridge.TypeSummary) {
	for _, s := range summary {
		fmt.Fprintln(w, s.Type)
		if len(s.All) > 0 {
			fmt.Fprintf(w, "  *: %s\n", strings.Join(s.All, ", "))
		}

		methods := make([]string, 0, len(s.Methods))
		for m := range s.Methods {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		for _, m := range methods {
			fmt.Fprintf(w, "  %s: %s\n", m, strings.Join(s.Methods[m], ", "))
		}
	}
}
