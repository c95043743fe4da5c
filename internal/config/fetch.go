package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FetchConfig holds configuration for the fetch command.
type FetchConfig struct {
	StartDate string
	EndDate   string
	SolStart  float64
	SolEnd    float64
	Out       string
	LogLevel  string
	Dune      DuneConfig
}

// LoadFetch merges config file, environment variables, and flags into FetchConfig.
func LoadFetch(cfgFile string, flags *pflag.FlagSet) (FetchConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("out", "./data/datasets.json")
	})
	if err != nil {
		return FetchConfig{}, err
	}

	if err := requireSet(v, "sol-start", "sol-end"); err != nil {
		return FetchConfig{}, err
	}

	dune, err := loadDune(v)
	if err != nil {
		return FetchConfig{}, err
	}

	return FetchConfig{
		StartDate: v.GetString("start-date"),
		EndDate:   v.GetString("end-date"),
		SolStart:  v.GetFloat64("sol-start"),
		SolEnd:    v.GetFloat64("sol-end"),
		Out:       v.GetString("out"),
		LogLevel:  v.GetString("log-level"),
		Dune:      dune,
	}, nil
}

// FormatConfig holds configuration for the format command.
type FormatConfig struct {
	In        string
	IncludeL2 bool
	LogLevel  string
}

// LoadFormat merges config file, environment variables, and flags into FormatConfig.
func LoadFormat(cfgFile string, flags *pflag.FlagSet) (FormatConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("in", "./data/datasets.json")
		v.SetDefault("include-l2", false)
	})
	if err != nil {
		return FormatConfig{}, err
	}

	return FormatConfig{
		In:        v.GetString("in"),
		IncludeL2: v.GetBool("include-l2"),
		LogLevel:  v.GetString("log-level"),
	}, nil
}
