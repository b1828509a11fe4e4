// Copyright 2025, Playout Works. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/spf13/pflag"

	"github.com/playout-works/chansched/pkg/logging"
)

type ServerConfig struct {
	LogFormat string `json:"logformat"`
	LogLevel  string `json:"loglevel"`
	Port      int    `json:"port"`
	TimeoutS  int    `json:"timeoutS"`
	// DBPath is the SQLite database holding the asset library and schedules.
	DBPath  string `json:"dbpath"`
	Channel string `json:"channel"`
	// MaxRequests limits API requests per IP per ReqLimitIntS interval.
	// 0 disables the limiter.
	MaxRequests  int `json:"maxrequests"`
	ReqLimitIntS int `json:"reqlimitintS"`
	// Domains is a comma-separated list for automatic HTTPS certificates.
	Domains string `json:"domains"`
	// CertPath and KeyPath enable HTTPS with a static certificate.
	CertPath string `json:"certpath"`
	KeyPath  string `json:"keypath"`
	// HolidayGreetings toggles the greeting fair-rotation interleave.
	HolidayGreetings bool `json:"holidaygreetings"`
	// MaxErrors bounds consecutive selection errors in one build.
	MaxErrors int `json:"maxerrors"`
}

var DefaultConfig = ServerConfig{
	LogFormat:        "text",
	LogLevel:         "INFO",
	Port:             8877,
	TimeoutS:         0,
	DBPath:           "./chansched.db",
	Channel:          "main",
	MaxRequests:      0,
	ReqLimitIntS:     3600,
	HolidayGreetings: true,
	MaxErrors:        100,
}

// LoadConfig loads defaults, config file, command line, and finally applies
// environment variables with the CHANSCHED_ prefix.
//
// DBPath is made absolute relative to cwd.
func LoadConfig(args []string, cwd string) (*ServerConfig, error) {
	// First set default values
	k := koanf.New(".")
	defaults := DefaultConfig
	_ = k.Load(structs.Provider(defaults, "json"), nil)

	f := pflag.NewFlagSet("chansched", pflag.ContinueOnError)
	f.Usage = func() {
		parts := strings.Split(args[0], "/")
		name := parts[len(parts)-1]
		fmt.Fprintf(os.Stderr, "Run as %s [options]:\n", name)
		f.PrintDefaults()
	}
	cfgFile := f.String("cfg", "", "path to a JSON config file")
	f.Int("port", k.Int("port"), "HTTP port")
	lf := strings.Join(logging.LogFormats, ", ")
	f.String("logformat", k.String("logformat"), fmt.Sprintf("log format [%s]", lf))
	ll := strings.Join(logging.LogLevels, ", ")
	f.String("loglevel", k.String("loglevel"), fmt.Sprintf("log level [%s]", ll))
	f.String("dbpath", k.String("dbpath"), "SQLite database path")
	f.String("channel", k.String("channel"), "channel name stamped on schedules")
	f.Int("timeout", k.Int("timeoutS"), "timeout for all requests (seconds)")
	f.Int("maxrequests", k.Int("maxrequests"), "max API requests per IP per interval (0 = no limit)")
	f.String("domains", k.String("domains"), "comma-separated domains for automatic TLS certificates")
	f.Bool("holidaygreetings", k.Bool("holidaygreetings"), "enable holiday greeting rotation")
	if err := f.Parse(args[1:]); err != nil {
		return nil, fmt.Errorf("command line parse: %w", err)
	}

	// Load the config file provided on the command line.
	if *cfgFile != "" {
		cf := file.Provider(*cfgFile)
		if err := k.Load(cf, json.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	// Possibly override config file with command line parameters
	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("parsing cli: %v", err)
	}

	// Overload with environment variables
	_ = k.Load(env.Provider("CHANSCHED_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "CHANSCHED_")), "_", ".", -1)
	}), nil)

	// Make the database path absolute in case it is not already
	dbPath := k.String("dbpath")
	if dbPath != "" && !path.IsAbs(dbPath) {
		dbPath = path.Join(cwd, dbPath)
		_ = k.Load(confmap.Provider(map[string]any{
			"dbpath": dbPath,
		}, "."), nil)
	}

	var cfg ServerConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
