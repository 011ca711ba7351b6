package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables read by LoadEnvOverride
const (
	EnvLogLvl      = "TREEFS_LOG_LVL"
	EnvFsName      = "TREEFS_FS_NAME"
	EnvName        = "TREEFS_NAME"
	EnvDebug       = "TREEFS_DEBUG"
	EnvAllowOther  = "TREEFS_ALLOW_OTHER"
	EnvRootPerms   = "TREEFS_ROOT_PERMS" // octal, e.g. 0755
	EnvMetricsAddr = "TREEFS_METRICS_ADDR"
)

// LoadEnvOverride builds a ConfigOverride from TREEFS_* variables.
// If envFile is not empty its values are read first; variables set in the
// process environment take precedence over the file.
func LoadEnvOverride(envFile string) (*ConfigOverride, error) {
	fileVals := map[string]string{}
	if envFile != "" {
		vals, err := godotenv.Read(envFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file: %w", err)
		}
		fileVals = vals
	}

	return parseEnvOverride(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVals[key]
		return v, ok
	})
}

func parseEnvOverride(lookup func(string) (string, bool)) (*ConfigOverride, error) {
	var o ConfigOverride

	if v, ok := lookup(EnvLogLvl); ok {
		lvl, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvLogLvl, err)
		}
		o.LogLvl = &lvl
	}
	if v, ok := lookup(EnvFsName); ok {
		o.FsName = &v
	}
	if v, ok := lookup(EnvName); ok {
		o.Name = &v
	}
	if v, ok := lookup(EnvDebug); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvDebug, err)
		}
		o.Debug = &b
	}
	if v, ok := lookup(EnvAllowOther); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvAllowOther, err)
		}
		o.AllowOther = &b
	}
	if v, ok := lookup(EnvRootPerms); ok {
		perms, err := strconv.ParseUint(v, 8, 32)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvRootPerms, err)
		}
		p := uint32(perms)
		o.RootPerms = &p
	}
	if v, ok := lookup(EnvMetricsAddr); ok {
		o.MetricsAddr = &v
	}

	return &o, nil
}
