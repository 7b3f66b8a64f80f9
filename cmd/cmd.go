// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.json",
	}
}

// runCommand consumes Singer messages from stdin and loads them into Salesforce.
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Read Singer messages from stdin and upsert records",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Read messages from a file instead of stdin",
			},
			&cli.StringFlag{
				Name:  "failures",
				Usage: "Write failed records to a CSV file",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Prepare payloads without writing to Salesforce",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Minimum log level (debug, info, warn, error)",
				Value: "info",
			},
		},
		Action: r.Run,
	}
}

// authCommand handles OAuth token operations.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "OAuth token operations",
		Commands: []*cli.Command{
			{
				Name:   "test",
				Usage:  "Verify credentials by refreshing the access token",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthTest,
			},
			{
				Name:   "refresh",
				Usage:  "Force a token refresh and persist it to the config file",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthRefresh,
			},
		},
	}
}

// describeCommand inspects Salesforce object metadata.
func describeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "describe",
		Usage: "Describe a Salesforce object, or list all objects",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "object",
			},
		},
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
			&cli.BoolFlag{
				Name:  "writable",
				Usage: "Only show fields accepted in payloads",
			},
		},
		Action: r.Describe,
	}
}

// queryCommand runs raw SOQL.
func queryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "Execute a SOQL query and print rows as JSON",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "soql",
			},
		},
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Query,
	}
}

// realtimeCommand processes bare records outside a Singer stream.
func realtimeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "realtime",
		Usage: "Upsert one or more raw JSON records for a stream",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "file",
			},
		},
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "stream",
				Aliases:  []string{"s"},
				Usage:    "Stream name the records belong to (e.g. contacts)",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Realtime,
	}
}

// cacheCommand manages the local lookup cache and run journal.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the local lookup cache",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Create the cache database and schema",
				Flags:  []cli.Flag{configFlag()},
				Action: r.CacheInit,
			},
			{
				Name:   "stats",
				Usage:  "Show cache and journal counts",
				Flags:  []cli.Flag{configFlag()},
				Action: r.CacheStats,
			},
		},
	}
}
