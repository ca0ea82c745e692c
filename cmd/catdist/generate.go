package main

import (
	"fmt"

	catderrors "github.com/23skdu/catdist/internal/errors"
	"github.com/23skdu/catdist/internal/pack"
	"github.com/23skdu/catdist/internal/synth"
	"github.com/spf13/cobra"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		out string
		sc  synth.Config
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a random categorical dataset",
		Long: `Draw a dataset whose codes are uniform over 1..codes, each value missing
with the given probability. Paths ending in .arrow, .arrows or .ipc are
written as an Arrow IPC stream, anything else as a Parquet cell file.

Examples:
  catdist generate --out data.parquet
  catdist generate --out data.arrow
  catdist generate --samples 5000 --features 64 --codes 12 --out data.parquet`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return dispatch(a.cfg.Element,
				func() error { return runGenerate[uint8](cmd, a, sc, out) },
				func() error { return runGenerate[uint16](cmd, a, sc, out) },
				func() error { return runGenerate[uint32](cmd, a, sc, out) },
				func() error { return runGenerate[uint64](cmd, a, sc, out) },
			)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output path (.parquet or .arrow)")
	_ = cmd.MarkFlagRequired("out")
	addSynthFlags(cmd, &sc)
	return cmd
}

func runGenerate[T pack.Scalar](cmd *cobra.Command, a *app, sc synth.Config, out string) error {
	d, err := synth.Generate[T](sc)
	if err != nil {
		return err
	}
	if err := saveDataset(out, d); err != nil {
		return catderrors.WrapStorageError(err, "generate", "save dataset").WithContext("path", out)
	}
	a.logger.Info().
		Int("samples", d.N()).
		Int("features", d.M()).
		Str("path", out).
		Msg("Dataset written")
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d x %d dataset to %s\n", d.N(), d.M(), out)
	return err
}

func addSynthFlags(cmd *cobra.Command, sc *synth.Config) {
	def := synth.DefaultConfig()
	fs := cmd.Flags()
	fs.IntVar(&sc.Samples, "samples", def.Samples, "number of samples (rows)")
	fs.IntVar(&sc.Features, "features", def.Features, "number of features (columns)")
	fs.IntVar(&sc.Codes, "codes", def.Codes, "distinct codes per feature, drawn from 1..codes")
	fs.Float64Var(&sc.MissingRate, "missing-rate", def.MissingRate, "probability that a value is missing")
	fs.Uint64Var(&sc.Seed, "seed", def.Seed, "random seed")
}

// dispatch runs the function matching the configured element type.
func dispatch(elem string, u8, u16, u32, u64 func() error) error {
	switch elem {
	case "u8":
		return u8()
	case "u16":
		return u16()
	case "u32":
		return u32()
	case "u64":
		return u64()
	default:
		return ErrInvalidElement
	}
}
