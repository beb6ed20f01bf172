package config

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flagKeys maps viper keys to the command flags that override them
var flagKeys = map[string]string{
	"quiet":                           "quiet",
	"verbose":                         "verbose",
	"stats.preset":                    "stats",
	"watch":                           "watch",
	"watch_options.aggregate_timeout": "aggregate-timeout",
	"progress":                        "progress",
	"fs_mode":                         "fs-mode",
	"name":                            "name",
	"no_cache":                        "no-cache",
	"compile_at_end_of_input":         "compile-at-end",
	"dest":                            "dest",
	"extract":                         "extract",
	"remove":                          "remove",
	"merge":                           "merge",
	"history":                         "history",
}

// Loader handles configuration loading from various sources
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForBuild loads configuration for build and watch operations.
// args are the source globs; the local config is searched from the working directory.
func (l *Loader) LoadForBuild(cmd *cobra.Command, args []string) (*Options, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.loadLocalConfig()
	l.bindCommandFlags(cmd)

	if len(args) > 0 {
		viper.Set("src", args)
	}

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("quiet", DefaultQuiet)
	viper.SetDefault("verbose", DefaultVerbose)
	viper.SetDefault("watch", DefaultWatch)
	viper.SetDefault("progress", DefaultProgress)
	viper.SetDefault("fs_mode", string(DefaultFSMode))
	viper.SetDefault("no_cache", DefaultNoCache)
	viper.SetDefault("compile_at_end_of_input", DefaultCompileAtEndOfInput)
	viper.SetDefault("dest", DefaultDest)
}

// loadGlobalConfig loads global configuration from the user config directory
func (l *Loader) loadGlobalConfig() {
	if path := FindGlobalConfig(); path != "" {
		viper.SetConfigFile(path)
		_ = viper.ReadInConfig()
	}
}

// loadLocalConfig merges the nearest project configuration over the global one
func (l *Loader) loadLocalConfig() {
	cwd, err := os.Getwd()
	if err != nil {
		return // silently ignore, the defaults still apply
	}

	if path := FindLocalConfig(cwd); path != "" {
		viper.SetConfigFile(path)
		_ = viper.MergeInConfig()
	}
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	for key, flag := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}
