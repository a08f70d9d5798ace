// Package reports exports invoice totals to columnar files through an
// in-memory DuckDB database.
package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/satheeshds/lexbill/models"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format is an export file format.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
)

// ParseFormat maps a query value to a Format. An empty value means Parquet.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", FormatParquet:
		return FormatParquet, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// ContentType is the MIME type of files in format f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/vnd.apache.parquet"
}

func (f Format) copyOptions() (string, error) {
	switch f {
	case FormatParquet:
		return "(FORMAT PARQUET, COMPRESSION ZSTD)", nil
	case FormatCSV:
		return "(FORMAT CSV, HEADER true)", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
}

const createTable = `CREATE TABLE invoices (
	id BIGINT,
	invoice_number VARCHAR,
	client_name VARCHAR,
	status VARCHAR,
	jurisdiction VARCHAR,
	issue_date DATE,
	due_date DATE,
	subtotal_excl_tax DECIMAL(18, 2),
	discount_amount DECIMAL(18, 2),
	vat_rate INTEGER,
	vat_amount DECIMAL(18, 2),
	total_incl_tax DECIMAL(18, 2),
	attorney_advanced_amount DECIMAL(18, 2),
	client_payable_amount DECIMAL(18, 2),
	paid DECIMAL(18, 2),
	outstanding DECIMAL(18, 2)
)`

const insertRow = `INSERT INTO invoices VALUES (?, ?, ?, ?, ?, CAST(? AS DATE), CAST(? AS DATE),
	CAST(? AS DECIMAL(18, 2)), CAST(? AS DECIMAL(18, 2)), ?, CAST(? AS DECIMAL(18, 2)), CAST(? AS DECIMAL(18, 2)),
	CAST(? AS DECIMAL(18, 2)), CAST(? AS DECIMAL(18, 2)), CAST(? AS DECIMAL(18, 2)), CAST(? AS DECIMAL(18, 2)))`

// Export writes one row per invoice to w in the given format. Amounts are in
// currency units with two decimals.
func Export(ctx context.Context, invoices []models.Invoice, format Format, w io.Writer) error {
	opts, err := format.copyOptions()
	if err != nil {
		return err
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return fmt.Errorf("opening duckdb: %w", err)
	}
	defer db.Close()

	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("creating export table: %w", err)
	}
	if err := insertInvoices(ctx, conn, invoices); err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "lexbill-export-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "invoices."+string(format))

	copyStmt := fmt.Sprintf("COPY (SELECT * FROM invoices ORDER BY id) TO '%s' %s", strings.ReplaceAll(path, "'", "''"), opts)
	if _, err := conn.ExecContext(ctx, copyStmt); err != nil {
		return fmt.Errorf("writing %s: %w", format, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func insertInvoices(ctx context.Context, conn *sql.Conn, invoices []models.Invoice) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, insertRow)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, inv := range invoices {
		_, err := stmt.ExecContext(ctx,
			int64(inv.ID), inv.InvoiceNumber, nullable(inv.ClientName), inv.Status, inv.Jurisdiction,
			nullable(inv.IssueDate), nullable(inv.DueDate),
			inv.SubtotalExclTax.String(), inv.DiscountAmount.String(), int32(inv.VATRate),
			inv.VATAmount.String(), inv.TotalInclTax.String(),
			inv.AttorneyAdvancedAmount.String(), inv.ClientPayableAmount.String(),
			inv.Paid.String(), inv.Outstanding.String())
		if err != nil {
			return fmt.Errorf("inserting invoice %d: %w", inv.ID, err)
		}
	}
	return tx.Commit()
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
