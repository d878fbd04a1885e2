package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/ifc-simplifier/backend/internal/extract"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"
)

const defaultInput = "data.json"

type simplifyOptions struct {
	vocabulary string
	workers    int
	format     string
	output     string
}

func newSimplifyCmd() *cobra.Command {
	opts := simplifyOptions{}

	cmd := &cobra.Command{
		Use:   "simplify [file]",
		Short: "Flatten an element export",
		Long: `Flatten an element export into attribute records.

The input defaults to data.json; "-" reads standard input. A single element
tree produces one record, a list produces a list of records.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := defaultInput
			if len(args) == 1 {
				input = args[0]
			}
			return runSimplify(cmd, input, opts)
		},
	}

	cmd.Flags().StringVar(&opts.vocabulary, "vocabulary", os.Getenv("IFC_VOCABULARY_FILE"), "YAML vocabulary file (default: built-in)")
	cmd.Flags().IntVar(&opts.workers, "workers", envInt("IFC_WORKERS", runtime.NumCPU()), "number of elements processed concurrently")
	cmd.Flags().StringVar(&opts.format, "format", "json", "output format: json or msgpack")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: standard output)")

	return cmd
}

func runSimplify(cmd *cobra.Command, input string, opts simplifyOptions) error {
	format := strings.ToLower(strings.TrimSpace(opts.format))
	if format != "json" && format != "msgpack" {
		return fmt.Errorf("unknown format %q (want json or msgpack)", opts.format)
	}

	x, err := newExtractor(opts.vocabulary)
	if err != nil {
		return err
	}

	root, err := readInput(cmd.InOrStdin(), input)
	if err != nil {
		return err
	}

	result, err := x.Process(cmd.Context(), root, opts.workers)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()
		out = f
	}

	w := bufio.NewWriter(out)
	if err := writeResult(w, result, format); err != nil {
		return err
	}
	return w.Flush()
}

func newExtractor(path string) (*extract.Extractor, error) {
	if path == "" {
		return extract.Default(), nil
	}
	v, err := extract.LoadVocabulary(path)
	if err != nil {
		return nil, fmt.Errorf("loading vocabulary: %w", err)
	}
	return extract.New(v)
}

func readInput(stdin io.Reader, input string) (extract.Node, error) {
	if input == "-" {
		return extract.DecodeReader(stdin)
	}

	f, err := os.Open(input)
	if err != nil {
		return extract.Node{}, err
	}
	defer f.Close()

	root, err := extract.DecodeReader(bufio.NewReader(f))
	if err != nil {
		return extract.Node{}, fmt.Errorf("%s: %w", input, err)
	}
	return root, nil
}

// writeResult encodes the records. JSON is indented by four spaces with
// non-ASCII text left as is.
func writeResult(w io.Writer, result extract.Result, format string) error {
	if format == "msgpack" {
		return msgpack.NewEncoder(w).Encode(result.Value())
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(result.Value())
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}
