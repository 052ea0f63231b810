package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/triplekit/tripod/dataset"
	"github.com/triplekit/tripod/ntriples"
)

var (
	buildCodec   string
	buildIOLimit int64
	buildBlock   int
)

var buildCmd = &cobra.Command{
	Use:   "build <input.nt> <output.tpd>",
	Short: "Build a dataset file from N-Triples input",
	Long:  "Parse an N-Triples file and encode it as a compressed, indexed dataset file.",
	Args:  cobra.ExactArgs(2),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildCodec, "codec", "zstd", "dictionary block codec: none, lz4 or zstd")
	buildCmd.Flags().Int64Var(&buildIOLimit, "io-limit", 0, "output write throttle in bytes per second (0 = unlimited)")
	buildCmd.Flags().IntVar(&buildBlock, "block-size", 0, "uncompressed dictionary block size in bytes (0 = default)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	codec, err := dataset.ParseCodec(buildCodec)
	if err != nil {
		return err
	}

	in, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer in.Close()

	start := time.Now()
	info, err := dataset.BuildFile(cmd.Context(), args[1], ntriples.NewReader(in), func(o *dataset.BuildOptions) {
		o.Codec = codec
		o.IOLimitBytesPerSec = buildIOLimit
		if buildBlock > 0 {
			o.DictBlockSize = buildBlock
		}
	})
	if err != nil {
		return fmt.Errorf("building %s: %w", args[1], err)
	}

	fmt.Printf("Built %s\n", args[1])
	fmt.Printf("  Triples: %d\n", info.NumTriples)
	fmt.Printf("  Terms:   %d\n", info.NumTerms)
	fmt.Printf("  Size:    %d bytes\n", info.Bytes)
	if verbose {
		fmt.Printf("  Build:   %s\n", info.BuildID)
		fmt.Printf("  Took:    %v\n", time.Since(start).Round(time.Millisecond))
	}
	return nil
}
