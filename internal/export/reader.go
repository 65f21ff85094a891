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

// ReadDataset parses the four tables in dir. Each table may be plain or
// snappy-framed; the extension decides. The manifest is optional.
func ReadDataset(dir string) (ledgerdomain.Dataset, Manifest, error) {
	manifest, err := readManifest(dir)
	if err != nil {
		return ledgerdomain.Dataset{}, Manifest{}, err
	}

	var (
		users    []ledgerdomain.User
		subs     []ledgerdomain.SubscriptionPeriod
		payments []ledgerdomain.Payment
		activity []ledgerdomain.ActivityEvent
	)

	readers := []struct {
		table  string
		header []string
		parse  func(record []string) error
	}{
		{TableUsers, usersHeader, func(r []string) error {
			u, err := parseUser(r)
			users = append(users, u)
			return err
		}},
		{TableSubscriptions, subscriptionsHeader, func(r []string) error {
			p, err := parseSubscription(r)
			subs = append(subs, p)
			return err
		}},
		{TablePayments, paymentsHeader, func(r []string) error {
			p, err := parsePayment(r)
			payments = append(payments, p)
			return err
		}},
		{TableActivity, activityHeader, func(r []string) error {
			e, err := parseActivity(r)
			activity = append(activity, e)
			return err
		}},
	}

	for _, rd := range readers {
		path, compressed, err := locateTable(dir, rd.table)
		if err != nil {
			return ledgerdomain.Dataset{}, Manifest{}, err
		}
		if err := readTable(path, compressed, rd.header, rd.parse); err != nil {
			return ledgerdomain.Dataset{}, Manifest{}, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
	}

	return ledgerdomain.NewDataset(users, subs, payments, activity), manifest, nil
}

func readManifest(dir string) (Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return Manifest{}, nil
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

// locateTable prefers the plain file when both variants exist.
func locateTable(dir, table string) (string, bool, error) {
	plain := filepath.Join(dir, table+csvExt)
	if _, err := os.Stat(plain); err == nil {
		return plain, false, nil
	}
	compressed := filepath.Join(dir, table+snappyExt)
	if _, err := os.Stat(compressed); err == nil {
		return compressed, true, nil
	}
	return "", false, fmt.Errorf("%w: %s", ErrMissingTable, table)
}

func readTable(path string, compressed bool, header []string, parse func([]string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var src io.Reader = bufio.NewReader(f)
	if compressed {
		src = snappy.NewReader(f)
	}

	r := csv.NewReader(src)
	r.FieldsPerRecord = len(header)
	r.ReuseRecord = true

	got, err := r.Read()
	if err != nil {
		return fmt.Errorf("header: %w", err)
	}
	for i, col := range header {
		if got[i] != col {
			return fmt.Errorf("header column %d: want %q, got %q", i+1, col, got[i])
		}
	}

	line := 1
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line++
		if err := parse(record); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}

func parseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(ledgerdomain.DateLayout, raw, time.UTC)
}

func parseID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

func parseUser(r []string) (ledgerdomain.User, error) {
	id, err := parseID(r[0])
	if err != nil {
		return ledgerdomain.User{}, fmt.Errorf("user_id: %w", err)
	}
	age, err := strconv.Atoi(r[1])
	if err != nil {
		return ledgerdomain.User{}, fmt.Errorf("age: %w", err)
	}
	signup, err := parseDate(r[5])
	if err != nil {
		return ledgerdomain.User{}, fmt.Errorf("signup_date: %w", err)
	}
	return ledgerdomain.User{
		ID:                 id,
		Age:                age,
		Country:            r[2],
		Device:             r[3],
		AcquisitionChannel: r[4],
		SignupDate:         signup,
	}, nil
}

func parseSubscription(r []string) (ledgerdomain.SubscriptionPeriod, error) {
	id, err := parseID(r[0])
	if err != nil {
		return ledgerdomain.SubscriptionPeriod{}, fmt.Errorf("subscription_id: %w", err)
	}
	userID, err := parseID(r[1])
	if err != nil {
		return ledgerdomain.SubscriptionPeriod{}, fmt.Errorf("user_id: %w", err)
	}
	price, err := ledgerdomain.ParseAmount(r[3])
	if err != nil {
		return ledgerdomain.SubscriptionPeriod{}, fmt.Errorf("monthly_price: %w", err)
	}
	start, err := parseDate(r[4])
	if err != nil {
		return ledgerdomain.SubscriptionPeriod{}, fmt.Errorf("start_date: %w", err)
	}

	period := ledgerdomain.SubscriptionPeriod{
		ID:           id,
		UserID:       userID,
		Plan:         r[2],
		MonthlyPrice: price,
		StartDate:    start,
		Status:       ledgerdomain.SubscriptionStatus(r[6]),
	}
	if r[5] != "" {
		end, err := parseDate(r[5])
		if err != nil {
			return ledgerdomain.SubscriptionPeriod{}, fmt.Errorf("end_date: %w", err)
		}
		period.EndDate = &end
	}
	return period, nil
}

func parsePayment(r []string) (ledgerdomain.Payment, error) {
	id, err := parseID(r[0])
	if err != nil {
		return ledgerdomain.Payment{}, fmt.Errorf("payment_id: %w", err)
	}
	userID, err := parseID(r[1])
	if err != nil {
		return ledgerdomain.Payment{}, fmt.Errorf("user_id: %w", err)
	}
	subscriptionID, err := parseID(r[2])
	if err != nil {
		return ledgerdomain.Payment{}, fmt.Errorf("subscription_id: %w", err)
	}
	amount, err := ledgerdomain.ParseAmount(r[3])
	if err != nil {
		return ledgerdomain.Payment{}, fmt.Errorf("amount: %w", err)
	}
	paidAt, err := parseDate(r[4])
	if err != nil {
		return ledgerdomain.Payment{}, fmt.Errorf("payment_date: %w", err)
	}
	return ledgerdomain.Payment{
		ID:             id,
		UserID:         userID,
		SubscriptionID: subscriptionID,
		Amount:         amount,
		PaymentDate:    paidAt,
		Status:         ledgerdomain.PaymentStatus(r[5]),
	}, nil
}

func parseActivity(r []string) (ledgerdomain.ActivityEvent, error) {
	userID, err := parseID(r[0])
	if err != nil {
		return ledgerdomain.ActivityEvent{}, fmt.Errorf("user_id: %w", err)
	}
	day, err := parseDate(r[1])
	if err != nil {
		return ledgerdomain.ActivityEvent{}, fmt.Errorf("activity_date: %w", err)
	}
	watch, err := strconv.ParseFloat(r[2], 64)
	if err != nil {
		return ledgerdomain.ActivityEvent{}, fmt.Errorf("watch_time_minutes: %w", err)
	}
	return ledgerdomain.ActivityEvent{UserID: userID, ActivityDate: day, WatchTimeMinutes: watch}, nil
}
