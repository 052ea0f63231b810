package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/triplekit/tripod"
	"github.com/triplekit/tripod/core"
	"github.com/triplekit/tripod/ntriples"
)

var queryLimit int

var queryCmd = &cobra.Command{
	Use:   "query <file.tpd> [subject] [predicate] [object]",
	Short: "Search a dataset file by triple pattern",
	Long: `Print all triples matching a pattern as N-Triples statements.
Omitted positions and positions given as "?" match any term.`,
	Args: cobra.RangeArgs(1, 4),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "stop after this many results (0 = all)")
}

// patternArg turns a positional argument into an engine term. "?" is the
// command-line spelling of a wildcard.
func patternArg(args []string, pos int) string {
	if pos >= len(args) || args[pos] == "?" {
		return core.Wildcard
	}
	return args[pos]
}

func runQuery(cmd *cobra.Command, args []string) error {
	bridge := tripod.New()
	defer bridge.Close()

	type outcome struct {
		triples []core.Triple
		err     error
	}
	done := make(chan outcome, 1)

	bridge.OpenDocument(args[0], func(doc *tripod.Document, err error) {
		if err != nil {
			done <- outcome{err: err}
			return
		}
		doc.Search(patternArg(args, 1), patternArg(args, 2), patternArg(args, 3),
			func(triples []core.Triple, err error) {
				doc.Close()
				done <- outcome{triples: triples, err: err}
			})
	})

	res := <-done
	if res.err != nil {
		return res.err
	}

	triples := res.triples
	if queryLimit > 0 && len(triples) > queryLimit {
		triples = triples[:queryLimit]
	}

	w := ntriples.NewWriter(os.Stdout)
	for _, t := range triples {
		if err := w.Write(t); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "%d triples\n", len(triples))
	}
	return nil
}
