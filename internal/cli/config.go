package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeycumines/go-latencytracker"
	"github.com/joeycumines/go-latencytracker/internal/logging"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = `LATENCYTRACKER`

type (
	// Config is decoded from (in order of precedence) flags, environment
	// variables (e.g. LATENCYTRACKER_TRACKER_CAPACITY), and the config file.
	Config struct {
		Log     logging.Config `mapstructure:"log"`
		Tracker TrackerConfig  `mapstructure:"tracker"`
		Load    LoadConfig     `mapstructure:"load"`
	}

	TrackerConfig struct {
		Capacity    int           `mapstructure:"capacity"`
		GCPeriod    time.Duration `mapstructure:"gc-period"`
		GCThreshold time.Duration `mapstructure:"gc-threshold"`
	}

	LoadConfig struct {
		// Workers is the number of concurrent goroutines generating events.
		Workers int `mapstructure:"workers"`
		// Events is the number of events per worker.
		Events int `mapstructure:"events"`
		// Keys is the number of distinct keys, per worker.
		Keys int `mapstructure:"keys"`
		// Threshold is the latency above which events are reported.
		Threshold time.Duration `mapstructure:"threshold"`
		// Timeout is the per-event timeout, 0 to disable.
		Timeout time.Duration `mapstructure:"timeout"`
		// Work is the upper bound of the (uniformly random) simulated work
		// between the beginning and end of each event.
		Work time.Duration `mapstructure:"work"`
		// Abandon is the fraction of events that are never ended.
		Abandon float64 `mapstructure:"abandon"`
		// Unique enables superseding of events with the same key.
		Unique bool `mapstructure:"unique"`
		// MetricsAddr enables serving /metrics, e.g. ":9090".
		MetricsAddr string `mapstructure:"metrics-addr"`
		// Linger keeps serving /metrics after the workload completes.
		Linger time.Duration `mapstructure:"linger"`
	}
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`, `-`, `_`))
	v.AutomaticEnv()

	v.SetDefault(`log.format`, logging.FormatJSON)
	v.SetDefault(`log.level`, `info`)
	v.SetDefault(`tracker.capacity`, latencytracker.DefaultCapacity)
	v.SetDefault(`tracker.gc-period`, time.Duration(0))
	v.SetDefault(`tracker.gc-threshold`, time.Duration(0))
	v.SetDefault(`load.workers`, 4)
	v.SetDefault(`load.events`, 1000)
	v.SetDefault(`load.keys`, 8)
	v.SetDefault(`load.threshold`, time.Millisecond)
	v.SetDefault(`load.timeout`, time.Millisecond*50)
	v.SetDefault(`load.work`, time.Millisecond*2)
	v.SetDefault(`load.abandon`, 0.01)
	v.SetDefault(`load.unique`, false)
	v.SetDefault(`load.metrics-addr`, ``)
	v.SetDefault(`load.linger`, time.Duration(0))

	return v
}

// bindFlags binds each flag to the config key of the same name, within
// section (e.g. load.workers), except for keys already qualified.
func bindFlags(v *viper.Viper, section string, flags *pflag.FlagSet) (err error) {
	flags.VisitAll(func(flag *pflag.Flag) {
		if err != nil {
			return
		}
		key := flag.Name
		if section != `` {
			key = section + `.` + key
		}
		err = v.BindPFlag(key, flag)
	})
	return err
}

// loadConfig reads the optional config file, then decodes Config.
func loadConfig(v *viper.Viper, file string) (*Config, error) {
	if file != `` {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf(`reading config file: %w`, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf(`decoding config: %w`, err)
	}
	return &cfg, nil
}

// options maps the tracker section to tracker options.
func (x *TrackerConfig) options() []latencytracker.Option {
	return []latencytracker.Option{
		latencytracker.WithCapacity(x.Capacity),
		latencytracker.WithGCPeriod(x.GCPeriod),
		latencytracker.WithGCThreshold(x.GCThreshold),
	}
}
