package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/choropleth/internal/classify"
	"github.com/sells-group/choropleth/internal/join"
	"github.com/sells-group/choropleth/internal/model"
	"github.com/sells-group/choropleth/internal/render"
)

var (
	breaksAttribute string
	breaksAll       bool
	breaksFormat    string
)

var breaksCmd = &cobra.Command{
	Use:   "breaks",
	Short: "Print natural breaks and the join report",
	RunE: func(cmd *cobra.Command, args []string) error {
		attrs := model.Attributes()
		if !breaksAll {
			attr, err := resolveAttribute(breaksAttribute)
			if err != nil {
				return err
			}
			attrs = []model.AttributeName{attr}
		}

		ds, err := loadDataset(cmd.Context())
		if err != nil {
			return err
		}

		scales := make([]*classify.Scale, 0, len(attrs))
		for _, a := range attrs {
			scales = append(scales, classify.Build(ds.Counties.Records, a, cfg.Classify.Classes))
		}
		return writeBreaks(cmd.OutOrStdout(), breaksFormat, breaksReport{Scales: scales, Join: ds.Report})
	},
}

type breaksReport struct {
	Scales []*classify.Scale `json:"scales" yaml:"scales"`
	Join   join.Report       `json:"join" yaml:"join"`
}

func writeBreaks(out io.Writer, format string, r breaksReport) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(out)
		defer enc.Close() //nolint:errcheck
		return enc.Encode(r)
	case "table", "":
		return writeBreaksTable(out, r)
	default:
		return eris.Errorf("breaks: unknown format %q", format)
	}
}

func writeBreaksTable(out io.Writer, r breaksReport) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ATTRIBUTE\tVALUES\tCLASSES\tBREAKS\tSIZES")
	for _, s := range r.Scales {
		breaks := make([]string, len(s.Breaks))
		for i, b := range s.Breaks {
			breaks[i] = render.FormatValue(b)
		}
		sizes := make([]string, len(s.ClusterSizes))
		for i, n := range s.ClusterSizes {
			sizes[i] = fmt.Sprint(n)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
			s.Attribute, s.Count, s.Classes(), orDash(strings.Join(breaks, " | ")), orDash(strings.Join(sizes, ",")))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nJoin: %d matched, %d invalid cells\n", r.Join.Matched, r.Join.InvalidCells)
	printKeys(out, "Unmatched facts", r.Join.UnmatchedFacts)
	printKeys(out, "Unmatched polygons", r.Join.UnmatchedPolygons)
	printKeys(out, "Duplicate facts", r.Join.DuplicateFacts)
	return nil
}

func printKeys(out io.Writer, label string, keys []string) {
	if len(keys) == 0 {
		return
	}
	fmt.Fprintf(out, "  %s (%d): %s\n", label, len(keys), strings.Join(keys, ", "))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	breaksCmd.Flags().StringVar(&breaksAttribute, "attribute", "", "attribute name or slug (default from config)")
	breaksCmd.Flags().BoolVar(&breaksAll, "all", false, "classify every attribute")
	breaksCmd.Flags().StringVar(&breaksFormat, "format", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(breaksCmd)
}
