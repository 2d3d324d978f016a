package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	zohocrm "github.com/natserract/zoho/pkg/zoho/crm"
)

const (
	modeInsert = "insert"
	modeUpdate = "update"
)

var (
	importModule string
	importMode   string
	importFile   string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Insert or update records from a JSON file",
	Long: `Send a JSON array of records to a module in one request and print the
result Zoho reports for each record, in order.

In update mode every record must carry its "id". The command fails when any
record was rejected; the accepted ones stay written.

Examples:
  crmctl import -m Leads -f leads.json
  crmctl import -m Contacts --mode update -f contacts.json
  cat leads.json | crmctl import -m Leads -f -`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importModule, "module", "m", "", "CRM module API name, e.g. Leads")
	importCmd.Flags().StringVar(&importMode, "mode", modeInsert, "insert or update")
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", `JSON file with an array of records ("-" reads stdin)`)
	_ = importCmd.MarkFlagRequired("module")
	_ = importCmd.MarkFlagRequired("file")
}

func runImport(cmd *cobra.Command, args []string) error {
	if importMode != modeInsert && importMode != modeUpdate {
		return fmt.Errorf("invalid --mode %q: want %s or %s", importMode, modeInsert, modeUpdate)
	}

	records, err := readRecords(cmd, importFile)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("%s contains no records", importFile)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := zohocrm.NewWithLogger(cfg, logger)

	var results []zohocrm.RecordResult
	if importMode == modeUpdate {
		results, err = zohocrm.UpdateMany(cmd.Context(), client, importModule, records)
	} else {
		results, err = zohocrm.InsertMany(cmd.Context(), client, importModule, records)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", importMode, importModule, err)
	}

	failed := printResults(cmd.OutOrStdout(), results)
	logger.Info("Import finished",
		zap.String("module", importModule),
		zap.String("mode", importMode),
		zap.Int("sent", len(records)),
		zap.Int("failed", failed))

	if failed > 0 {
		return fmt.Errorf("%d of %d records failed", failed, len(results))
	}
	return nil
}

func readRecords(cmd *cobra.Command, path string) ([]json.RawMessage, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%s is not a JSON array of records: %w", path, err)
	}
	return records, nil
}

func printResults(w io.Writer, results []zohocrm.RecordResult) int {
	failed := 0
	for i, r := range results {
		switch {
		case r.Succeeded():
			fmt.Fprintf(w, "%d\t%s\tid=%s\t%s\n", i, r.Code, r.Details.Success.ID, r.Message)
		case r.Details.Error != nil:
			failed++
			fmt.Fprintf(w, "%d\t%s\tfield=%s expected=%s\t%s\n", i, r.Code,
				r.Details.Error.APIName, r.Details.Error.ExpectedDataType, r.Message)
		default:
			failed++
			fmt.Fprintf(w, "%d\t%s\t\t%s\n", i, r.Code, r.Message)
		}
	}
	return failed
}
