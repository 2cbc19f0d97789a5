package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	kriging "github.com/flywave/go-okgrid"
	"github.com/flywave/go-okgrid/internal/server"
)

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func newGridCommand(global *globalOptions) *cobra.Command {
	var output, variance, table, background, interpolator string

	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Krige the samples onto an ASCII grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("interpolator") {
				cfg.Kriging.Interpolator = interpolator
			}
			points, err := global.readSamples(cfg)
			if err != nil {
				return err
			}

			pipeline, err := kriging.NewPipeline(cfg.Kriging)
			if err != nil {
				return err
			}
			if background != "" {
				bg, err := readGrid(background, cfg.Input.HalfCell)
				if err != nil {
					return fmt.Errorf("read background %s: %w", background, err)
				}
				if err := pipeline.SetBackground(bg); err != nil {
					return err
				}
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()
			res, err := pipeline.Run(ctx, points)
			if err != nil {
				return err
			}
			if res.Regularized {
				klog.Warning("kriging system was regularized, estimates are approximate")
			}
			if res.Fit != nil {
				klog.InfoS("fitted variogram", "model", res.Model.String(), "residual", res.Fit.Residual)
			}

			encode := func(field kriging.Field) func(io.Writer) error {
				return func(w io.Writer) error {
					return kriging.Encode(w, res.Grid, kriging.EncodeOptions{Field: field, HalfCell: cfg.Input.HalfCell})
				}
			}
			if err := writeOutput(output, encode(kriging.FieldValue)); err != nil {
				return err
			}
			if variance != "" {
				if err := writeOutput(variance, encode(kriging.FieldVariance)); err != nil {
					return err
				}
			}
			if table != "" {
				return writeOutput(table, func(w io.Writer) error { return kriging.WriteTable(w, res.Grid) })
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", stdio, "ASCII grid of the estimates")
	cmd.Flags().StringVar(&variance, "variance", "", "ASCII grid of the kriging variances")
	cmd.Flags().StringVar(&table, "table", "", "CSV table of x,y,value,variance")
	cmd.Flags().StringVar(&background, "background", "", "ASCII grid sampled into cells masked by --mask-hull")
	cmd.Flags().StringVar(&interpolator, "interpolator", kriging.BILINEAR, "background interpolator, bilinear or nearest")
	return cmd
}

func newVariogramCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "variogram",
		Short: "Print the empirical variogram and the fitted model as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.load(cmd)
			if err != nil {
				return err
			}
			points, err := global.readSamples(cfg)
			if err != nil {
				return err
			}
			pipeline, err := kriging.NewPipeline(cfg.Kriging)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()
			res, err := pipeline.Variogram(ctx, points)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	return cmd
}

func newBinCommand(global *globalOptions) *cobra.Command {
	var output, tie string

	cmd := &cobra.Command{
		Use:   "bin",
		Short: "Drop the samples into grid cells without interpolation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.load(cmd)
			if err != nil {
				return err
			}
			tieBreak, err := kriging.ParseTieBreak(tie)
			if err != nil {
				return err
			}
			points, err := global.readSamples(cfg)
			if err != nil {
				return err
			}
			spec, err := kriging.GridSpecForLimit(points, cfg.Kriging.CellSize, cfg.Kriging.MaxCells)
			if err != nil {
				return err
			}
			grid, err := kriging.BinToGrid(points, spec, cfg.Kriging.NoData, tieBreak)
			if err != nil {
				return err
			}
			klog.V(1).InfoS("binned samples", "cells", spec.Count(), "filled", grid.ValidCount())
			return writeOutput(output, func(w io.Writer) error {
				return kriging.Encode(w, grid, kriging.EncodeOptions{HalfCell: cfg.Input.HalfCell})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", stdio, "ASCII grid output")
	cmd.Flags().StringVar(&tie, "tie", string(kriging.TieAverage), "value of cells receiving several samples: average, nearest or last")
	return cmd
}

func newServeCommand(global *globalOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the gridding HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()
			return server.New(cfg).Run(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port")
	return cmd
}
