package cmd

import (
	"bufio"
	"encoding/json"

	"github.com/spf13/cobra"

	"studiopipe/internal/archive"
	"studiopipe/pkg/errors"
)

var (
	generateBatch  int
	generateDecode string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Print synthetic records as NDJSON",
	Long: `Generate prints one batch of synthetic fan interaction and box office
records, one JSON document per line, without touching the warehouse.

With --decode it prints the records stored in an archived batch file
(<run-id>/batch_N_fans.json.sz) instead.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	flags := generateCmd.Flags()
	flags.IntVar(&generateBatch, "batch", 1, "Batch number stamped on the records")
	flags.Int("fan-count", 100, "Fan interactions to generate")
	flags.Int("box-office-count", 50, "Box office records to generate")
	flags.Int64("seed", 0, "Generator seed (0 seeds from the clock)")
	flags.StringVar(&generateDecode, "decode", "", "Archived batch file to decode")

	configKey(flags, "fan-count", "load.fan_count")
	configKey(flags, "box-office-count", "load.box_office_count")
	configKey(flags, "seed", "load.seed")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	w := bufio.NewWriter(cmd.OutOrStdout())

	if generateDecode != "" {
		payloads, err := archive.DecodeFile(generateDecode)
		if err != nil {
			return err
		}
		for _, p := range payloads {
			w.Write(p)
			w.WriteByte('\n')
		}
		return w.Flush()
	}

	gen := newGenerator()
	enc := json.NewEncoder(w)
	for _, f := range gen.FanInteractions(generateBatch, cfg.Load.FanCount) {
		if err := enc.Encode(f); err != nil {
			return errors.Wrap(err, errors.ErrCodeGeneration, "Failed to encode fan interaction")
		}
	}
	for _, b := range gen.BoxOfficeRecords(generateBatch, cfg.Load.BoxOfficeCount) {
		if err := enc.Encode(b); err != nil {
			return errors.Wrap(err, errors.ErrCodeGeneration, "Failed to encode box office record")
		}
	}
	return w.Flush()
}
