package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/pim-enrich/internal/model"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List prompt templates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("prompts"); err != nil {
			return err
		}
		reg, err := initRegistry(cmd.Context())
		if err != nil {
			return err
		}
		formatPrompts(os.Stdout, reg.List(), cfg.Enrichment.DefaultPrompt)
		return nil
	},
}

// formatPrompts writes the templates as a table, marking the default.
func formatPrompts(out io.Writer, ts []model.PromptTemplate, defaultID string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tDEFAULT")
	for _, t := range ts {
		def := ""
		if t.ID == defaultID {
			def = "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.Name, def)
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(promptsCmd)
}
