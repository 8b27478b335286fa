package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "STREAMSIM"

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "streamsim",
		Short: "Simulates cut-through transmission of units that are still arriving",
		Long: `streamsim runs discrete-event scenarios of a transmitter that starts sending each unit
before the whole unit has arrived, and plots the recordings it produces.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file providing defaults for any flag")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false,
		"Verbose mode for debugging")
	bindFlag(v, "verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(newRunCmd(v), newPlotCmd(v))
	return rootCmd
}

func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(errors.Wrapf(err, "cannot bind flag %q", key))
	}
}

// initConfig reads in the config file, if any, and environment variables.
func initConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if cfgFile == "" {
		return nil
	}
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "unable to read config file %s", cfgFile)
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return config.Build()
}
