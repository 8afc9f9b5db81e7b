/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	settings.go: Daemon settings. YAML file + HOVERFC_* environment + flags.
*/

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/b3nn0/hoverfc/fc"
	"github.com/b3nn0/hoverfc/sensors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	appName           = "hoverfc"
	defaultConfigName = "config"
	envPrefix         = "HOVERFC"

	defaultMetricsAddr = ":9977"
	defaultLogDir      = "/var/log/hoverfc"
	defaultSerialPort  = "/dev/serial0"
	defaultSerialBaud  = 115200

	sourceSim      = "sim"
	sourceReplay   = "replay"
	sourceMPU6050  = "mpu6050"
	sourceICM20948 = "icm20948"
)

var userHomeDir, _ = os.UserHomeDir()
var defaultConfigFile = path.Join(userHomeDir, ".config", appName, defaultConfigName+".yaml")
var configSearchPaths = []string{
	path.Join(userHomeDir, ".config", appName),
	"/etc/" + appName,
	"./",
}

type LoopOpt struct {
	Source    string  `yaml:"source" mapstructure:"source"`         // sim | replay | mpu6050 | icm20948
	TraceFile string  `yaml:"trace_file" mapstructure:"trace_file"` // input for the replay source
	Duration  float64 `yaml:"duration" mapstructure:"duration"`     // s, 0 runs until stopped
	Realtime  bool    `yaml:"realtime" mapstructure:"realtime"`     // pace ticks with the wall clock
	I2CBus    byte    `yaml:"i2c_bus" mapstructure:"i2c_bus"`
}

type MetricsOpt struct {
	Listen string `yaml:"listen" mapstructure:"listen"`
}

type DatalogOpt struct {
	Enable bool   `yaml:"enable" mapstructure:"enable"`
	Path   string `yaml:"path" mapstructure:"path"`
}

type TraceOpt struct {
	Enable bool   `yaml:"enable" mapstructure:"enable"`
	Dir    string `yaml:"dir" mapstructure:"dir"`
}

type TelemetryOpt struct {
	Enable     bool   `yaml:"enable" mapstructure:"enable"`
	Port       string `yaml:"port" mapstructure:"port"`
	Baud       int    `yaml:"baud" mapstructure:"baud"`
	Decimation int    `yaml:"decimation" mapstructure:"decimation"` // send every Nth tick
}

type PWMOpt struct {
	Enable     bool   `yaml:"enable" mapstructure:"enable"`
	Pins       []int  `yaml:"pins" mapstructure:"pins"`               // BCM numbering, pins[i] drives motor i
	Frequency  int    `yaml:"frequency" mapstructure:"frequency"`     // PWM clock, Hz
	Cycle      uint32 `yaml:"cycle" mapstructure:"cycle"`             // clock ticks per period
	CommandMin int32  `yaml:"command_min" mapstructure:"command_min"` // motor command mapped to PulseMin
	CommandMax int32  `yaml:"command_max" mapstructure:"command_max"` // motor command mapped to PulseMax
	PulseMin   uint32 `yaml:"pulse_min" mapstructure:"pulse_min"`     // clock ticks
	PulseMax   uint32 `yaml:"pulse_max" mapstructure:"pulse_max"`     // clock ticks
}

type HoverOpt struct {
	Vehicle   fc.Config         `yaml:"vehicle" mapstructure:"vehicle"`
	Sim       sensors.SimConfig `yaml:"sim" mapstructure:"sim"`
	Loop      LoopOpt           `yaml:"loop" mapstructure:"loop"`
	Metrics   MetricsOpt        `yaml:"metrics" mapstructure:"metrics"`
	Datalog   DatalogOpt        `yaml:"datalog" mapstructure:"datalog"`
	Trace     TraceOpt          `yaml:"trace" mapstructure:"trace"`
	Telemetry TelemetryOpt      `yaml:"telemetry" mapstructure:"telemetry"`
	PWM       PWMOpt            `yaml:"pwm" mapstructure:"pwm"`
	Debug     bool              `yaml:"debug" mapstructure:"debug"`
	LogDir    string            `yaml:"log_dir" mapstructure:"log_dir"`
}

func NewHoverOpt() HoverOpt {
	return HoverOpt{
		Vehicle: fc.DefaultConfig(),
		Sim:     sensors.DefaultSimConfig(),
		Loop: LoopOpt{
			Source:   sourceSim,
			Realtime: true,
			I2CBus:   1,
		},
		Metrics: MetricsOpt{Listen: defaultMetricsAddr},
		Datalog: DatalogOpt{Path: path.Join(defaultLogDir, "hoverfc.sqlite")},
		Trace:   TraceOpt{Dir: defaultLogDir},
		Telemetry: TelemetryOpt{
			Port:       defaultSerialPort,
			Baud:       defaultSerialBaud,
			Decimation: 10,
		},
		PWM: PWMOpt{
			Pins:       []int{12, 13},
			Frequency:  400 * 2500, // 400 Hz frame, 1 µs per tick
			Cycle:      2500,
			CommandMin: 0,
			CommandMax: 255,
			PulseMin:   1000,
			PulseMax:   2000,
		},
		LogDir: defaultLogDir,
	}
}

type HoverDesc struct {
	Opt   HoverOpt
	Viper *viper.Viper
}

func NewHoverDesc() HoverDesc {
	return HoverDesc{Opt: NewHoverOpt()}
}

// Parse resolves the config file (flag, HOVERFC_CONFIG, search path), then
// layers environment and flag overrides on top of the defaults.
func (o *HoverDesc) Parse(cmd *cobra.Command) error {
	vipCfg := viper.New()
	vipCfg.SetDefault("debug", false)
	vipCfg.SetDefault("log_dir", o.Opt.LogDir)
	vipCfg.SetDefault("loop.source", o.Opt.Loop.Source)
	vipCfg.SetDefault("loop.duration", o.Opt.Loop.Duration)
	vipCfg.SetDefault("loop.realtime", o.Opt.Loop.Realtime)
	vipCfg.SetDefault("metrics.listen", o.Opt.Metrics.Listen)
	vipCfg.SetDefault("datalog.enable", o.Opt.Datalog.Enable)
	vipCfg.SetDefault("trace.enable", o.Opt.Trace.Enable)
	vipCfg.SetDefault("telemetry.enable", o.Opt.Telemetry.Enable)
	vipCfg.SetDefault("pwm.enable", o.Opt.PWM.Enable)

	if configFileCmd, err := cmd.Flags().GetString("config"); err == nil && configFileCmd != "" {
		vipCfg.SetConfigFile(configFileCmd)
	} else if configFileEnv := os.Getenv(envPrefix + "_CONFIG"); configFileEnv != "" {
		vipCfg.SetConfigFile(configFileEnv)
	} else {
		vipCfg.SetConfigName(defaultConfigName)
		vipCfg.SetConfigType("yaml")
		for _, p := range configSearchPaths {
			vipCfg.AddConfigPath(p)
		}
	}

	vipCfg.SetEnvPrefix(envPrefix)
	vipCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vipCfg.AutomaticEnv()

	for key, flag := range map[string]string{
		"debug":         "debug",
		"loop.source":   "source",
		"loop.duration": "duration",
		"log_dir":       "log-dir",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = vipCfg.BindPFlag(key, f)
		}
	}

	if err := vipCfg.ReadInConfig(); err == nil {
		log.Debugln("using config file:", vipCfg.ConfigFileUsed())
	} else {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
		log.Debugln("no config file, using defaults")
	}

	if err := vipCfg.Unmarshal(&o.Opt); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	o.Opt.Sim.Vehicle = o.Opt.Vehicle
	o.Viper = vipCfg
	return o.Opt.Validate()
}

func (o *HoverDesc) PostParse() {
	if o.Opt.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func (o *HoverOpt) Validate() error {
	if err := o.Vehicle.Validate(); err != nil {
		return fmt.Errorf("vehicle: %w", err)
	}
	switch o.Loop.Source {
	case sourceSim, sourceMPU6050, sourceICM20948:
	case sourceReplay:
		if o.Loop.TraceFile == "" {
			return errors.New("loop: replay source needs trace_file")
		}
	default:
		return fmt.Errorf("loop: unknown source %q", o.Loop.Source)
	}
	if o.Loop.Duration < 0 {
		return fmt.Errorf("loop: negative duration %v", o.Loop.Duration)
	}
	if o.PWM.Enable {
		if len(o.PWM.Pins) == 0 || len(o.PWM.Pins) > 4 {
			return fmt.Errorf("pwm: need 1 to 4 pins, got %d", len(o.PWM.Pins))
		}
		used := make(map[int]int)
		for _, pin := range o.PWM.Pins {
			ch, ok := pwmChannel[pin]
			if !ok {
				return fmt.Errorf("pwm: BCM %d has no hardware PWM", pin)
			}
			if other, dup := used[ch]; dup {
				return fmt.Errorf("pwm: BCM %d and %d share PWM channel %d", other, pin, ch)
			}
			used[ch] = pin
		}
		if o.PWM.Cycle == 0 || o.PWM.Frequency <= 0 {
			return errors.New("pwm: cycle and frequency must be positive")
		}
		if o.PWM.CommandMax <= o.PWM.CommandMin || o.PWM.PulseMax <= o.PWM.PulseMin || o.PWM.PulseMax > o.PWM.Cycle {
			return errors.New("pwm: bad command or pulse range")
		}
	}
	if o.Telemetry.Enable && o.Telemetry.Decimation <= 0 {
		return fmt.Errorf("telemetry: decimation must be positive, got %d", o.Telemetry.Decimation)
	}
	return nil
}

// dumpOption writes opt as YAML to outputPath, refusing to overwrite an
// existing file unless overwrite is set.
func dumpOption(opt interface{}, outputPath string, overwrite bool) error {
	if _, err := os.Stat(outputPath); err == nil && !overwrite {
		return fmt.Errorf("%s exists, use -y to overwrite", outputPath)
	}
	if err := os.MkdirAll(path.Dir(outputPath), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	buf, err := yaml.Marshal(opt)
	if err != nil {
		return err
	}
	if _, err = w.Write(buf); err != nil {
		return err
	}
	return w.Flush()
}

// InitCfg writes (or prints) a configuration template.
func InitCfg(cmd *cobra.Command, _ []string) error {
	printFlag, _ := cmd.Flags().GetBool("print")
	outputPath, _ := cmd.Flags().GetString("output")
	overwriteFlag, _ := cmd.Flags().GetBool("yes")

	desc := NewHoverDesc()
	if err := desc.Parse(cmd); err != nil {
		log.Errorln(err)
		return err
	}

	if printFlag {
		buf, _ := yaml.Marshal(desc.Opt)
		fmt.Println(string(buf))
		return nil
	}
	if err := dumpOption(desc.Opt, outputPath, overwriteFlag); err != nil {
		return err
	}
	log.Infof("FC Info: configuration written to %s", outputPath)
	return nil
}
