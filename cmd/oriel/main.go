package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/oriel-shell/oriel/pkg/buildinfo"
)

func main() {
	// Handle subcommands before flag parsing.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "init":
			initCmd := flag.NewFlagSet("init", flag.ExitOnError)
			initCmd.Usage = func() {
				fmt.Fprintf(os.Stderr, "Usage: oriel init [flags]\n\nScaffold a new app bundle: manifest, capabilities and a starter frontend.\n\nFlags:\n")
				initCmd.PrintDefaults()
			}
			dir := initCmd.String("dir", ".", "directory to scaffold into")
			_ = initCmd.Parse(os.Args[2:])

			if err := runInit(*dir); err != nil {
				fatal(err)
			}

			return
		case "mcp":
			mcpCmd := flag.NewFlagSet("mcp", flag.ExitOnError)
			mcpCmd.Usage = func() {
				fmt.Fprintf(os.Stderr, "Usage: oriel mcp\n\nServe the commands granted to the automation window as MCP tools over stdio.\n")
			}
			_ = mcpCmd.Parse(os.Args[2:])

			if err := runMCP(); err != nil {
				fatal(err)
			}

			return
		case "tail":
			tailCmd := flag.NewFlagSet("tail", flag.ExitOnError)
			tailCmd.Usage = func() {
				fmt.Fprintf(os.Stderr, "Usage: oriel tail -addr <host:port> -token <token>\n\nStream live events from a running dev instance.\n\nFlags:\n")
				tailCmd.PrintDefaults()
			}
			addr := tailCmd.String("addr", "", "address of the running dev instance")
			token := tailCmd.String("token", "", "dev stream token (printed by the instance at startup)")
			_ = tailCmd.Parse(os.Args[2:])

			if err := runTail(*addr, *token); err != nil {
				fatal(err)
			}

			return
		case "version":
			fmt.Println(buildinfo.String())
			return
		}
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: oriel [flags]\n       oriel <command> [flags]\n\nFlags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCommands:\n  init     Scaffold a new app bundle interactively\n  mcp      Serve plugin commands as MCP tools over stdio\n  tail     Stream live events from a running dev instance\n  version  Print build metadata\n")
	}

	dev := flag.Bool("dev", false, "dev mode: console logging, event stream, web inspector")
	hidden := flag.Bool("hidden", false, "start without showing the window")
	envFile := flag.String("env", ".env", "path to .env file loaded in dev mode (ignored if missing)")
	flag.Parse()

	if *dev {
		if err := loadDotEnv(*envFile); err != nil {
			fatal(err)
		}
	}

	if err := runShell(*dev, *hidden); err != nil {
		fatal(err)
	}
}

// fatal prints the startup diagnostic and exits non-zero.
func fatal(err error) {
	fmt.Fprintf(os.Stderr, "oriel: error: %v\n", err)
	os.Exit(1)
}

// loadDotEnv loads environment variables from path. Missing files are
// ignored so .env stays optional.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
