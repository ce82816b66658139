package main

import "github.com/urfave/cli/v3"

var (
	configPath string
	cacheDir   string
	threads    int64
	affinity   string
	cpuIDs     string
	jsonOut    bool
	logLevel   string
	logFormat  string
	debug      bool
)

func runtimeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml",
			Value:       defaultConfigPath(),
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "cache-dir",
			Usage:       "kernel cache directory",
			Sources:     cli.EnvVars("KERNELHAL_CACHE_DIR"),
			Destination: &cacheDir,
		},
		&cli.Int64Flag{
			Name:        "threads",
			Aliases:     []string{"t"},
			Usage:       "compute threads (0 = one per eligible core)",
			Destination: &threads,
		},
		&cli.StringFlag{
			Name:        "affinity",
			Usage:       "thread affinity policy (none, big_only, little_only)",
			Value:       "none",
			Destination: &affinity,
		},
		&cli.StringFlag{
			Name:        "cpu-ids",
			Usage:       "comma separated cores to pin threads to; overrides --affinity",
			Destination: &cpuIDs,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "print machine readable JSON",
			Destination: &jsonOut,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "warn",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}
