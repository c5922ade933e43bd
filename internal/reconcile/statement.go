package reconcile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/microloan/pkg/datetime"
)

// StatementLine is one credit on a bank or general ledger statement.
type StatementLine struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Amount      float64   `json:"amount"`
	Reference   string    `json:"reference,omitempty"`
	Description string    `json:"description,omitempty"`
	Source      string    `json:"source,omitempty"`
}

var statementHeader = []string{"id", "date", "amount", "reference", "description"}

// ParseStatementCSV reads statement lines from CSV with the header
// id,date,amount,reference,description. Dates use YYYY-MM-DD. Debits
// (negative amounts) are skipped since only repayments are reconciled.
func ParseStatementCSV(r io.Reader, source string) ([]StatementLine, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read statement header: %w", err)
	}
	for i, name := range statementHeader[:3] {
		if i >= len(header) || !strings.EqualFold(strings.TrimSpace(header[i]), name) {
			return nil, fmt.Errorf("unexpected statement header %v, want %v", header, statementHeader)
		}
	}

	var lines []StatementLine
	for row := 2; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading statement row %d: %w", row, err)
		}
		if len(record) < 3 {
			return nil, fmt.Errorf("statement row %d has %d fields", row, len(record))
		}

		date, err := datetime.ParseDate(strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("could not parse date '%s' on row %d: %w", record[1], row, err)
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("could not parse amount '%s' on row %d: %w", record[2], row, err)
		}
		if amount <= 0 {
			continue
		}

		line := StatementLine{ID: strings.TrimSpace(record[0]), Date: date, Amount: amount, Source: source}
		if len(record) > 3 {
			line.Reference = strings.TrimSpace(record[3])
		}
		if len(record) > 4 {
			line.Description = strings.TrimSpace(record[4])
		}
		if line.ID == "" {
			line.ID = fmt.Sprintf("%s-%d", source, row)
		}
		lines = append(lines, line)
	}
	return lines, nil
}
