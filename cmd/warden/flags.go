// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/holomush/warden/internal/config"
)

var flagUsage = map[string]string{
	"http-addr":    "API listen address",
	"metrics-addr": "metrics/health HTTP address (empty = disabled)",
	"log-format":   "log format (json or text)",
	"log-level":    "log level (debug, info, warn or error)",
	"store":        "storage driver (postgres or memory)",
	"database-url": "PostgreSQL connection URL",
	"auto-migrate": "apply pending migrations on startup",
	"mail-driver":  "mail transport (log, smtp or ses)",
}

// addConfigFlags registers the named flags with their compiled defaults.
// Only flags the user changes override the config file and environment.
func addConfigFlags(fs *pflag.FlagSet, names ...string) {
	defaults := config.Defaults()
	for _, name := range names {
		key, ok := config.FlagKeys[name]
		if !ok {
			panic(fmt.Sprintf("no config key for flag %q", name))
		}
		switch v := defaults[key].(type) {
		case bool:
			fs.Bool(name, v, flagUsage[name])
		case string:
			fs.String(name, v, flagUsage[name])
		default:
			fs.String(name, fmt.Sprint(v), flagUsage[name])
		}
	}
}
