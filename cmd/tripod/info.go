package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/triplekit/tripod/dataset"
)

var infoCmd = &cobra.Command{
	Use:   "info <file.tpd>",
	Short: "Show dataset file metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	ds, err := dataset.New().Map(args[0])
	if err != nil {
		return err
	}
	defer ds.Close()

	d, ok := ds.(*dataset.Dataset)
	if !ok {
		return fmt.Errorf("%s: not a dataset file", args[0])
	}

	st, err := os.Stat(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("File:    %s\n", args[0])
	fmt.Printf("Size:    %d bytes\n", st.Size())
	fmt.Printf("Build:   %s\n", d.BuildID())
	fmt.Printf("Codec:   %s\n", d.Codec())
	fmt.Printf("Triples: %d\n", d.NumTriples())
	fmt.Printf("Terms:   %d\n", d.NumTerms())
	return nil
}
