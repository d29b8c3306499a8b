package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pim-enrich/internal/model"
	"github.com/sells-group/pim-enrich/internal/report"
	"github.com/sells-group/pim-enrich/internal/session"
)

var (
	extractProduct string
	extractFile    string
	extractPrompt  string
	extractMode    string
	extractReport  string
	extractApply   bool
	extractJSON    bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract attribute proposals for one product from a document",
	Long:  "Loads the product, extracts attribute values from the document, and prints the comparison with the current record. With --apply the auto-selected changes are saved.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("extract"); err != nil {
			return err
		}
		ctx := cmd.Context()

		data, err := os.ReadFile(extractFile)
		if err != nil {
			return eris.Wrap(err, "read document")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sess := session.New(uuid.New().String(), env.sessionDeps(), sessionConfig())
		if err := sess.Load(ctx, extractProduct); err != nil {
			return userError(err)
		}

		in := session.ExtractInput{
			Document: model.NewDocument(filepath.Base(extractFile), "", data),
			PromptID: extractPrompt,
		}
		if extractMode != "" {
			in.Mode = model.ParseExtractionMode(extractMode)
		}
		snap, err := sess.Extract(ctx, in)
		if err != nil {
			return userError(err)
		}

		if extractReport != "" {
			if err := report.SaveXLSX(extractReport, snap.Product, snap.Comparisons); err != nil {
				return err
			}
			zap.L().Info("report written", zap.String("path", extractReport))
		}

		var saved *session.SaveResult
		if extractApply {
			res, err := sess.Save(ctx)
			if err != nil {
				return userError(err)
			}
			saved = &res
		}

		if extractJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Session session.Snapshot    `json:"session"`
				Save    *session.SaveResult `json:"save,omitempty"`
			}{snap, saved})
		}

		fmt.Fprintln(os.Stderr, snap.Message)
		formatComparisons(os.Stdout, snap.Comparisons)
		if saved != nil {
			fmt.Fprintln(os.Stderr, saved.Message)
		}
		return nil
	},
}

// userError keeps the cause in the log and returns the user-facing text.
func userError(err error) error {
	zap.L().Debug("command failed", zap.Error(err))
	return eris.Errorf("%s (%s)", model.UserMessage(err), model.KindOf(err))
}

// formatComparisons writes the comparison set as a table. Selected rows are
// green, changed but unselected rows yellow.
func formatComparisons(out io.Writer, cs []model.Comparison) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SEL\tCODE\tCURRENT\tPROPOSED\tCONF\tCHANGED")
	_, _ = fmt.Fprintln(w, "---\t----\t-------\t--------\t----\t-------")

	selected := color.New(color.FgGreen)
	changed := color.New(color.FgYellow)
	for _, c := range cs {
		current := "-"
		if c.CurrentValue != nil {
			current = shorten(*c.CurrentValue, 30)
		}
		sel, diff := " ", ""
		if c.IsSelected {
			sel = "x"
		}
		if c.IsDifferent {
			diff = "yes"
		}
		line := fmt.Sprintf("[%s]\t%s\t%s\t%s\t%.2f\t%s",
			sel, c.Code, current, shorten(c.EffectiveValue(), 30), c.Confidence, diff)

		switch {
		case c.IsSelected:
			_, _ = selected.Fprintln(w, line)
		case c.IsDifferent:
			_, _ = changed.Fprintln(w, line)
		default:
			_, _ = fmt.Fprintln(w, line)
		}
	}
	_ = w.Flush()
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	extractCmd.Flags().StringVar(&extractProduct, "product", "", "product UUID")
	extractCmd.Flags().StringVar(&extractFile, "file", "", "document to extract from (pdf or image)")
	extractCmd.Flags().StringVar(&extractPrompt, "prompt", "", "prompt template id (default from config)")
	extractCmd.Flags().StringVar(&extractMode, "mode", "", "extraction mode: all or empty (default from config)")
	extractCmd.Flags().StringVar(&extractReport, "report", "", "write the comparison to an XLSX file")
	extractCmd.Flags().BoolVar(&extractApply, "apply", false, "save the auto-selected changes to the PIM")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "print the session snapshot as JSON")
	_ = extractCmd.MarkFlagRequired("product")
	_ = extractCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(extractCmd)
}
