package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/alphabill-org/zkbridge/internal/logger"
	"github.com/alphabill-org/zkbridge/internal/metrics"
)

type baseConfiguration struct {
	// The zkbridge home directory
	HomeDir string
	// Configuration file URL. If it's relative, then it's relative from the HomeDir.
	CfgFile string
	// Logger configuration file URL.
	LogCfgFile string
}

const (
	// The prefix for configuration keys inside environment.
	envPrefix = "ZKB"
	// The default name for config file.
	defaultConfigFile = "config.props"
	// the default zkbridge directory.
	defaultHomeDir = ".zkbridge"
	// The default logger configuration file name.
	defaultLoggerConfigFile = "logger-config.yaml"
	// The configuration key for home directory.
	keyHome = "home"
	// The configuration key for config file name.
	keyConfig = "config"
	// Enables metrics collection
	keyMetrics = "metrics"

	flagNameLoggerCfgFile = "logger-config"
	flagNameLogOutputFile = "log-file"
	flagNameLogLevel      = "log-level"
	flagNameLogFormat     = "log-format"
)

func (r *baseConfiguration) addConfigurationFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&r.HomeDir, keyHome, "", fmt.Sprintf("set the ZKB_HOME for this invocation (default is %s)", zkbridgeHomeDir()))
	cmd.PersistentFlags().StringVar(&r.CfgFile, keyConfig, "", fmt.Sprintf("config file URL (default is $ZKB_HOME/%s)", defaultConfigFile))
	cmd.PersistentFlags().Bool(keyMetrics, false, "enables metrics collection, served by the node on /metrics")

	cmd.PersistentFlags().StringVar(&r.LogCfgFile, flagNameLoggerCfgFile, defaultLoggerConfigFile, "logger config file URL. Considered absolute if starts with '/'. Otherwise relative from $ZKB_HOME.")
	// do not set default values for these flags as then we can easily determine whether to load the value from cfg file or not
	cmd.PersistentFlags().String(flagNameLogOutputFile, "", "log file path or one of the special values: stdout, stderr")
	cmd.PersistentFlags().String(flagNameLogLevel, "", "logging level, one of: NONE, ERROR, WARNING, INFO, DEBUG, TRACE")
	cmd.PersistentFlags().String(flagNameLogFormat, "", "log format, one of: console, json")
}

func initializeConfig(cmd *cobra.Command, config *baseConfiguration) error {
	var errs []error
	if err := config.initializeConfig(cmd); err != nil {
		errs = append(errs, fmt.Errorf("reading configuration: %w", err))
	}
	if err := config.initLogger(cmd); err != nil {
		errs = append(errs, fmt.Errorf("initializing logger: %w", err))
	}
	enabled, err := cmd.Flags().GetBool(keyMetrics)
	if err != nil {
		errs = append(errs, fmt.Errorf("reading flag %q: %w", keyMetrics, err))
	} else if enabled {
		metrics.Enable()
	}
	return errors.Join(errs...)
}

// initializeConfig reads in config file and ENV variables if set.
func (r *baseConfiguration) initializeConfig(cmd *cobra.Command) error {
	v := viper.New()

	r.initConfigFileLocation()
	if r.configFileExists() {
		v.SetConfigFile(r.CfgFile)
	}

	// config file is optional, but when present it must parse
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	// flag --max-proof-size is read from ZKB_MAX_PROOF_SIZE
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := bindFlags(cmd, v); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// bindFlags copies values from the config file and environment to the
// flags not set on the command line.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var bindFlagErr []error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// resolved by initConfigFileLocation
		if f.Name == keyHome || f.Name == keyConfig {
			return
		}

		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name, fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				bindFlagErr = append(bindFlagErr, fmt.Errorf("binding env to flag %q: %w", f.Name, err))
				return
			}
		}

		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				bindFlagErr = append(bindFlagErr, fmt.Errorf("setting flag %q value: %w", f.Name, err))
				return
			}
		}
	})
	return errors.Join(bindFlagErr...)
}

func (r *baseConfiguration) initConfigFileLocation() {
	// flag, then env, then default
	if r.HomeDir == "" {
		r.HomeDir = os.Getenv(envKey(keyHome))
		if r.HomeDir == "" {
			r.HomeDir = zkbridgeHomeDir()
		}
	}
	if r.CfgFile == "" {
		r.CfgFile = os.Getenv(envKey(keyConfig))
		if r.CfgFile == "" {
			r.CfgFile = defaultConfigFile
		}
	}
	if !filepath.IsAbs(r.CfgFile) {
		r.CfgFile = filepath.Join(r.HomeDir, r.CfgFile)
	}
}

// LoggerCfgFilename returns the logger config file, relative names are
// resolved against the home directory.
func (r *baseConfiguration) LoggerCfgFilename() string {
	if !filepath.IsAbs(r.LogCfgFile) {
		return filepath.Join(r.HomeDir, r.LogCfgFile)
	}
	return r.LogCfgFile
}

func (r *baseConfiguration) configFileExists() bool {
	_, err := os.Stat(r.CfgFile)
	return err == nil
}

// initLogger configures the global logger from the logger config file,
// the log flags override values from the file.
func (r *baseConfiguration) initLogger(cmd *cobra.Command) error {
	cfg := logger.DefaultConfig()
	loggerCfgFile := filepath.Clean(r.LoggerCfgFilename())
	if _, err := os.Stat(loggerCfgFile); err == nil {
		if cfg, err = logger.LoadConfig(loggerCfgFile); err != nil {
			return err
		}
	} else if loggerCfgFile != filepath.Join(r.HomeDir, defaultLoggerConfigFile) {
		return fmt.Errorf("logger configuration file: %w", err)
	}

	// NB! these flags mustn't have default values in Cobra cmd definition!
	if v, _ := cmd.Flags().GetString(flagNameLogLevel); v != "" {
		lvl, err := logger.ParseLevel(v)
		if err != nil {
			return err
		}
		cfg.DefaultLevel = lvl
	}
	if v, _ := cmd.Flags().GetString(flagNameLogFormat); v != "" {
		switch v {
		case "console":
			cfg.ConsoleFormat = true
		case "json":
			cfg.ConsoleFormat = false
		default:
			return fmt.Errorf("unknown log format %q", v)
		}
	}
	if v, _ := cmd.Flags().GetString(flagNameLogOutputFile); v != "" {
		cfg.OutputPath = v
		cfg.Writer = nil
	}
	return logger.Configure(cfg)
}

func envKey(key string) string {
	return strings.ToUpper(envPrefix + "_" + key)
}

func zkbridgeHomeDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		panic("default user home dir not defined: " + err.Error())
	}
	return filepath.Join(dir, defaultHomeDir)
}
