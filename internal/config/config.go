// Package config loads the tuning parameters of §6 of the spec
// (acquisition Doppler grid, tracking loop bandwidths, dump toggles) from a
// TOML file, falling back to coded defaults when no file is present.
//
// Modeled on jbrzusto-ogdar/config.go's loadConfig/setDefaultConfig split:
// read what's on disk, unmarshal into the known keys, and paper over a
// missing file with sane defaults rather than failing the process.
package config

import (
	"github.com/spf13/viper"
)

// Acquisition mirrors the acquisition tuning parameters of §6.
type Acquisition struct {
	SampledMs         int     `mapstructure:"sampled_ms"`
	MaxDwells         int     `mapstructure:"max_dwells"`
	DopplerMaxHz      float64 `mapstructure:"doppler_max_hz"`
	DopplerStepHz     float64 `mapstructure:"doppler_step_hz"`
	IntermediateFreq  float64 `mapstructure:"intermediate_freq_hz"`
	SampleRateHz      float64 `mapstructure:"fs_in_hz"`
	SamplesPerMs      int     `mapstructure:"samples_per_ms"`
	SamplesPerCode    int     `mapstructure:"samples_per_code"`
	BitTransitionFlag bool    `mapstructure:"bit_transition_flag"`
	Peak              int     `mapstructure:"peak"`
	Threshold         float64 `mapstructure:"threshold"`
}

// Tracking mirrors the tracking tuning parameters of §6.
type Tracking struct {
	PLLBandwidthHz        float64 `mapstructure:"pll_bw_hz"`
	DLLBandwidthHz        float64 `mapstructure:"dll_bw_hz"`
	EarlyLateSpaceChips   float64 `mapstructure:"early_late_space_chips"`
	VectorLength          int     `mapstructure:"vector_length"`
	CADLLSeedOffsetSample float64 `mapstructure:"cadll_seed_offset_samples"`
	DumpEnabled           bool    `mapstructure:"dump_enabled"`
	DumpDir               string  `mapstructure:"dump_dir"`
}

// Config is the top-level tuning-parameter document.
type Config struct {
	Acquisition Acquisition `mapstructure:"acquisition"`
	Tracking    Tracking    `mapstructure:"tracking"`
}

// Default returns the in-code defaults used when no config file is found,
// tuned for the classic S1 end-to-end scenario in spec §8.
func Default() Config {
	return Config{
		Acquisition: Acquisition{
			SampledMs:         1,
			MaxDwells:         1,
			DopplerMaxHz:      5000,
			DopplerStepHz:     500,
			IntermediateFreq:  0,
			SampleRateHz:      2.048e6,
			SamplesPerMs:      2048,
			SamplesPerCode:    2048,
			BitTransitionFlag: false,
			Peak:              1,
			Threshold:         2.5,
		},
		Tracking: Tracking{
			PLLBandwidthHz:        25,
			DLLBandwidthHz:        2,
			EarlyLateSpaceChips:   0.5,
			VectorLength:          2048,
			CADLLSeedOffsetSample: 27,
			DumpEnabled:           false,
			DumpDir:               "./data",
		},
	}
}

// Load reads a TOML file named "gnsscore" from the given search paths (in
// viper's usual override order) and overlays it on Default(). Returns the
// defaults, unmodified, if no config file can be found or read — the
// process must still be able to run with no file on disk, as in ogdar.
func Load(searchPaths ...string) Config {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("gnsscore")
	v.SetConfigType("toml")
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		return cfg
	}
	_ = v.UnmarshalKey("acquisition", &cfg.Acquisition)
	_ = v.UnmarshalKey("tracking", &cfg.Tracking)
	return cfg
}
