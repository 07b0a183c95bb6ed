package internal

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type fileSignature struct {
	Name string `mapstructure:"name"`
	Hex  string `mapstructure:"hex"`
	Text string `mapstructure:"text"`
}

// LoadConfigFile overlays the keys present in a yaml/json/toml file onto cfg.
// Keys: window_size, bytes_per_row, min_string_length, max_run_length,
// run_policy, signatures (list of {name, hex | text}).
func LoadConfigFile(path string, cfg Config) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("%w: read %s: %w", ErrInvalidConfiguration, path, err)
	}

	if v.IsSet("window_size") {
		cfg.WindowSize = v.GetInt("window_size")
	}
	if v.IsSet("bytes_per_row") {
		cfg.BytesPerRow = v.GetInt("bytes_per_row")
	}
	if v.IsSet("min_string_length") {
		cfg.MinStringLength = v.GetInt("min_string_length")
	}
	if v.IsSet("max_run_length") {
		cfg.MaxRunLength = v.GetInt("max_run_length")
	}
	if v.IsSet("run_policy") {
		p, err := ParseRunPolicy(v.GetString("run_policy"))
		if err != nil {
			return cfg, err
		}
		cfg.RunPolicy = p
	}
	if v.IsSet("signatures") {
		var raw []fileSignature
		if err := v.UnmarshalKey("signatures", &raw); err != nil {
			return cfg, fmt.Errorf("%w: signatures: %w", ErrInvalidConfiguration, err)
		}
		sigs := make([]Signature, 0, len(raw))
		for _, fs := range raw {
			value := fs.Text
			if fs.Hex != "" {
				value = "hex:" + fs.Hex
			}
			sig, err := ParseSignature(fs.Name, value)
			if err != nil {
				return cfg, err
			}
			sigs = append(sigs, sig)
		}
		cfg.Signatures = sigs
	}
	logrus.WithField("file", v.ConfigFileUsed()).Debug("config loaded")
	return cfg, nil
}
