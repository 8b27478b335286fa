package main

import (
	"path/filepath"
	"strings"

	"github.com/celskeggs/streamthrough/sim/component"
	"github.com/celskeggs/streamthrough/sim/model"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gonum.org/v1/plot/vg"
)

func newPlotCmd(v *viper.Viper) *cobra.Command {
	plotCmd := &cobra.Command{
		Use:   "plot <recording.csv> <out.png>",
		Short: "Renders a recording as a chart of transmissions over time",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(v.GetBool("verbose"))
			if err != nil {
				return errors.Wrap(err, "cannot build logger")
			}
			defer func() {
				_ = logger.Sync()
			}()
			width := vg.Length(v.GetFloat64("width")) * vg.Inch
			height := vg.Length(v.GetFloat64("height")) * vg.Inch
			return plotRecording(args[0], args[1], width, height, logger)
		},
	}
	plotCmd.Flags().Float64("width", 10, "width of the chart in inches")
	plotCmd.Flags().Float64("height", 6, "height of the chart in inches")
	bindFlag(v, "width", plotCmd.Flags().Lookup("width"))
	bindFlag(v, "height", plotCmd.Flags().Lookup("height"))
	return plotCmd
}

func plotRecording(recordingPath, outPath string, width, height vg.Length, logger *zap.Logger) error {
	records, err := component.DecodeRecording(recordingPath)
	if err != nil {
		return err
	}
	txs, err := CollectTransmissions(records)
	if err != nil {
		return errors.Wrapf(err, "in recording %s", recordingPath)
	}
	endTime := model.TimeZero
	if len(records) > 0 {
		endTime = records[len(records)-1].Timestamp
	}
	logger.Info("plotting recording",
		zap.String("recording", recordingPath),
		zap.Int("records", len(records)),
		zap.Int("transmissions", len(txs)))

	title := strings.TrimSuffix(filepath.Base(recordingPath), filepath.Ext(recordingPath))
	p, err := BuildChart(title, txs, endTime)
	if err != nil {
		return err
	}
	if err := p.Save(width, height, outPath); err != nil {
		return errors.Wrapf(err, "cannot save chart to %s", outPath)
	}
	return nil
}
