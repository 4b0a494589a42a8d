package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"novachat/internal/config"
	"novachat/internal/server"
)

// version is reported by --version/-v, matching main.cpp's hardcoded
// "Nova Chat Server v1.0.0" banner.
const version = "1.0.0"

// parseCommandLine mirrors main.cpp's parseCommandLine: -c/--config
// names the JSON config file (defaulting to config.json), it also
// accepts a single positional CONFIG_FILE in its place the way
// boost::program_options' positional_options_description binds the
// first bare argument to "config", -h/--help prints usage and exits
// 0, and -v/--version prints the version banner and exits 0.
func parseCommandLine(args []string, out, errOut *os.File) (configPath string, exit bool, exitCode int) {
	fs := flag.NewFlagSet("novachat-server", flag.ContinueOnError)
	fs.SetOutput(errOut)

	configPath = "config.json"
	fs.StringVar(&configPath, "config", configPath, "path to the server's JSON configuration file")
	fs.StringVar(&configPath, "c", configPath, "path to the server's JSON configuration file (shorthand)")
	showVersion := fs.Bool("version", false, "show version information")
	fs.BoolVar(showVersion, "v", false, "show version information (shorthand)")

	fs.Usage = func() {
		fmt.Fprintf(errOut, "Nova Chat Server - Secure REST API Chat Backend\n\n")
		fmt.Fprintf(errOut, "Usage: %s [OPTIONS] [CONFIG_FILE]\n\n", fs.Name())
		fmt.Fprintf(errOut, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(errOut, "\nExamples:\n")
		fmt.Fprintf(errOut, "  %s                    # Use default config.json\n", fs.Name())
		fmt.Fprintf(errOut, "  %s myconfig.json      # Use custom config file\n", fs.Name())
		fmt.Fprintf(errOut, "  %s -c production.json # Use -c option\n", fs.Name())
		fmt.Fprintf(errOut, "  %s --help             # Show this help\n", fs.Name())
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return "", true, 0
		}
		fmt.Fprintln(errOut, "Use --help for usage information")
		return "", true, 1
	}

	// A single positional argument takes the place of -config/-c, the
	// same as the original's single positional slot bound to "config".
	if rest := fs.Args(); len(rest) > 0 {
		configPath = rest[0]
	}

	if *showVersion {
		fmt.Fprintf(out, "Nova Chat Server v%s\n", version)
		return "", true, 0
	}

	fmt.Fprintf(out, "Using configuration file: %s\n", configPath)
	return configPath, false, 0
}

func main() {
	configPath, exit, exitCode := parseCommandLine(os.Args[1:], os.Stdout, os.Stderr)
	if exit {
		os.Exit(exitCode)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err, "path", configPath)
		os.Exit(1)
	}

	srv, err := server.New(cfg)
	if err != nil {
		slog.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		slog.Error("failed to start server", "error", err)
		os.Exit(1)
	}
	slog.Info("server listening", "address", srv.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutdown signal received")
	srv.Stop()
}
