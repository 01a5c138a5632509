package tool

import (
	"flag"

	"github.com/vmaxx/repetier-go/types"
)

// SetFlags parses CLI flags and returns the override config.
func SetFlags() types.FlagConfig {
	var cfg types.FlagConfig
	flag.StringVar(&cfg.Log, "log", "", "log mode: dev|prod|none")
	flag.StringVar(&cfg.UseConfigPath, "useConfigPath", "", "override config file path")
	flag.StringVar(&cfg.UseAddress, "useAddress", "", "override the Repetier-Server address")
	flag.IntVar(&cfg.UsePort, "usePort", 0, "override the Repetier-Server port")
	flag.StringVar(&cfg.UseAPIKey, "useApiKey", "", "override the Repetier-Server API key")
	flag.IntVar(&cfg.UseListenPort, "useListenPort", 0, "override the local facade listen port")
	flag.Parse()
	return cfg
}
