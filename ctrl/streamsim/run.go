package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/celskeggs/streamthrough/sim/scenario"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Runs a scenario and prints what arrived at the far end",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(v.GetBool("verbose"))
			if err != nil {
				return errors.Wrap(err, "cannot build logger")
			}
			defer func() {
				_ = logger.Sync()
			}()
			return runScenario(cmd.OutOrStdout(), args[0], v.GetString("record"), v.GetString("metrics-out"), logger)
		},
	}
	runCmd.Flags().String("record", "",
		"write a CSV recording of every transmission event to this file")
	runCmd.Flags().String("metrics-out", "",
		"write the transmitter's metrics in Prometheus text format to this file")
	bindFlag(v, "record", runCmd.Flags().Lookup("record"))
	bindFlag(v, "metrics-out", runCmd.Flags().Lookup("metrics-out"))
	return runCmd
}

func runScenario(out io.Writer, path string, recordPath string, metricsPath string, logger *zap.Logger) (re error) {
	spec, err := scenario.Load(path)
	if err != nil {
		return err
	}
	opts := scenario.Options{Logger: logger}
	if recordPath != "" {
		f, err := os.Create(recordPath)
		if err != nil {
			return errors.Wrap(err, "cannot create recording")
		}
		w := bufio.NewWriter(f)
		defer func() {
			if err := w.Flush(); err != nil {
				re = multierror.Append(re, err)
			}
			if err := f.Close(); err != nil {
				re = multierror.Append(re, err)
			}
		}()
		opts.Recording = w
	}
	var registry *prometheus.Registry
	if metricsPath != "" {
		registry = prometheus.NewRegistry()
		opts.Registerer = registry
	}

	result, runErr := scenario.Run(spec, opts)
	if result != nil {
		printResult(out, result)
	}
	if registry != nil {
		if err := prometheus.WriteToTextfile(metricsPath, registry); err != nil {
			runErr = multierror.Append(runErr, errors.Wrap(err, "cannot write metrics"))
		}
	}
	return runErr
}

func printResult(out io.Writer, result *scenario.Result) {
	fmt.Fprintf(out, "scenario %s finished at %v\n", result.Name, result.EndTime)
	for _, reception := range result.Receptions {
		outcome := "complete"
		if reception.Aborted {
			outcome = "aborted"
		} else if !reception.Ended.TimeExists() {
			outcome = "in progress"
		}
		fmt.Fprintf(out, "  %v: %v -> %v, %d updates, %s\n",
			reception.Unit, reception.Started, reception.Ended, reception.Updates, outcome)
	}
	cut := 0
	for _, completion := range result.Completions {
		if completion.Cut {
			cut++
		}
	}
	fmt.Fprintf(out, "  %d units processed (%d cut short), %d symbol bytes received\n",
		len(result.Completions), cut, len(result.Received))
	if result.Underrun != nil {
		fmt.Fprintf(out, "  %v\n", result.Underrun)
	}
}
