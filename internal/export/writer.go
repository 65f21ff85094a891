// Package export writes ledger datasets as flat CSV tables and reads them back.
package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang/snappy"
	ledgerdomain "github.com/smallbiznis/subsight/internal/ledger/domain"
)

const (
	ManifestFile = "manifest.json"

	csvExt    = ".csv"
	snappyExt = ".csv.sz"
)

var ErrMissingTable = errors.New("missing_table_file")

// Table names double as file stems.
const (
	TableUsers         = "users"
	TableSubscriptions = "subscriptions"
	TablePayments      = "payments"
	TableActivity      = "user_activity"
)

var (
	usersHeader         = []string{"user_id", "age", "country", "device", "acquisition_channel", "signup_date"}
	subscriptionsHeader = []string{"subscription_id", "user_id", "plan", "monthly_price", "start_date", "end_date", "status"}
	paymentsHeader      = []string{"payment_id", "user_id", "subscription_id", "amount", "payment_date", "payment_status"}
	activityHeader      = []string{"user_id", "activity_date", "watch_time_minutes"}
)

type Options struct {
	// Compress writes snappy-framed .csv.sz files instead of plain CSV.
	Compress bool
	// Request is recorded in the manifest so a later load keeps the run parameters.
	Request *ledgerdomain.GenerateRequest
}

type FileEntry struct {
	Table string `json:"table"`
	File  string `json:"file"`
	Rows  int    `json:"rows"`
}

// Manifest describes one exported dataset directory.
type Manifest struct {
	Compressed bool                          `json:"compressed"`
	Files      []FileEntry                   `json:"files"`
	Request    *ledgerdomain.GenerateRequest `json:"request,omitempty"`
}

// WriteDataset writes the four tables and a manifest into dir.
func WriteDataset(dir string, dataset ledgerdomain.Dataset, opts Options) (Manifest, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("create output dir: %w", err)
	}

	manifest := Manifest{Compressed: opts.Compress, Request: opts.Request}
	tables := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{TableUsers, usersHeader, userRecords(dataset.Users())},
		{TableSubscriptions, subscriptionsHeader, subscriptionRecords(dataset.Subscriptions())},
		{TablePayments, paymentsHeader, paymentRecords(dataset.Payments())},
		{TableActivity, activityHeader, activityRecords(dataset.Activity())},
	}

	for _, table := range tables {
		file := fileName(table.name, opts.Compress)
		if err := writeTable(filepath.Join(dir, file), opts.Compress, table.header, table.rows); err != nil {
			return Manifest{}, fmt.Errorf("write %s: %w", file, err)
		}
		manifest.Files = append(manifest.Files, FileEntry{Table: table.name, File: file, Rows: len(table.rows)})
	}

	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return Manifest{}, err
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), append(raw, '\n'), 0o644); err != nil {
		return Manifest{}, fmt.Errorf("write manifest: %w", err)
	}
	return manifest, nil
}

func fileName(table string, compress bool) string {
	if compress {
		return table + snappyExt
	}
	return table + csvExt
}

func writeTable(path string, compress bool, header []string, rows [][]string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	var sink io.Writer
	var flush func() error
	if compress {
		sw := snappy.NewBufferedWriter(f)
		sink, flush = sw, sw.Close
	} else {
		bw := bufio.NewWriter(f)
		sink, flush = bw, bw.Flush
	}

	w := csv.NewWriter(sink)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return flush()
}

func formatDate(t time.Time) string { return t.Format(ledgerdomain.DateLayout) }

func userRecords(users []ledgerdomain.User) [][]string {
	out := make([][]string, 0, len(users))
	for _, u := range users {
		out = append(out, []string{
			strconv.FormatInt(u.ID, 10),
			strconv.Itoa(u.Age),
			u.Country,
			u.Device,
			u.AcquisitionChannel,
			formatDate(u.SignupDate),
		})
	}
	return out
}

func subscriptionRecords(subs []ledgerdomain.SubscriptionPeriod) [][]string {
	out := make([][]string, 0, len(subs))
	for _, p := range subs {
		end := ""
		if p.EndDate != nil {
			end = formatDate(*p.EndDate)
		}
		out = append(out, []string{
			strconv.FormatInt(p.ID, 10),
			strconv.FormatInt(p.UserID, 10),
			p.Plan,
			p.MonthlyPrice.String(),
			formatDate(p.StartDate),
			end,
			string(p.Status),
		})
	}
	return out
}

func paymentRecords(payments []ledgerdomain.Payment) [][]string {
	out := make([][]string, 0, len(payments))
	for _, p := range payments {
		out = append(out, []string{
			strconv.FormatInt(p.ID, 10),
			strconv.FormatInt(p.UserID, 10),
			strconv.FormatInt(p.SubscriptionID, 10),
			p.Amount.String(),
			formatDate(p.PaymentDate),
			string(p.Status),
		})
	}
	return out
}

func activityRecords(events []ledgerdomain.ActivityEvent) [][]string {
	out := make([][]string, 0, len(events))
	for _, e := range events {
		out = append(out, []string{
			strconv.FormatInt(e.UserID, 10),
			formatDate(e.ActivityDate),
			strconv.FormatFloat(e.WatchTimeMinutes, 'f', 2, 64),
		})
	}
	return out
}
