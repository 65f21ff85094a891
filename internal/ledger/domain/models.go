// Package domain contains the synthetic ledger entities and their persistence mapping.
package domain

import (
	"time"
)

// DateLayout is the calendar date format used by exports and reports.
const DateLayout = "2006-01-02"

// SubscriptionStatus represents the lifecycle state of a subscription period.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "Active"
	SubscriptionStatusCanceled SubscriptionStatus = "Canceled"
)

// PaymentStatus represents the outcome of a billing attempt.
type PaymentStatus string

const (
	PaymentStatusSuccess   PaymentStatus = "Success"
	PaymentStatusFailed    PaymentStatus = "Failed"
	PaymentStatusRecovered PaymentStatus = "Recovered"
)

// CollectedStatuses are the payment statuses that count as revenue.
var CollectedStatuses = []PaymentStatus{PaymentStatusSuccess, PaymentStatusRecovered}

// Plan is a catalog entry. Prices are monthly.
type Plan struct {
	Name         string `json:"name"`
	MonthlyPrice Amount `json:"monthly_price"`
}

// User is a simulated customer. Immutable after creation.
type User struct {
	ID                 int64     `gorm:"column:user_id;primaryKey;autoIncrement:false" json:"user_id"`
	Age                int       `gorm:"column:age;not null" json:"age"`
	Country            string    `gorm:"column:country;type:text;not null" json:"country"`
	Device             string    `gorm:"column:device;type:text;not null" json:"device"`
	AcquisitionChannel string    `gorm:"column:acquisition_channel;type:text;not null;index" json:"acquisition_channel"`
	SignupDate         time.Time `gorm:"column:signup_date;type:date;not null" json:"signup_date"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// SubscriptionPeriod is a user's subscription. Each user has at most one.
// A nil EndDate means the period is still open at generation time.
type SubscriptionPeriod struct {
	ID           int64              `gorm:"column:subscription_id;primaryKey;autoIncrement:false" json:"subscription_id"`
	UserID       int64              `gorm:"column:user_id;not null;index" json:"user_id"`
	Plan         string             `gorm:"column:plan;type:text;not null" json:"plan"`
	MonthlyPrice Amount             `gorm:"column:monthly_price;type:numeric(10,2);not null" json:"monthly_price"`
	StartDate    time.Time          `gorm:"column:start_date;type:date;not null" json:"start_date"`
	EndDate      *time.Time         `gorm:"column:end_date;type:date" json:"end_date,omitempty"`
	Status       SubscriptionStatus `gorm:"column:status;type:text;not null" json:"status"`
}

// TableName sets the database table name.
func (SubscriptionPeriod) TableName() string { return "subscriptions" }

// IsOpen reports whether the period has no end date.
func (p SubscriptionPeriod) IsOpen() bool {
	return p.EndDate == nil
}

// EffectiveEnd returns the end date, or horizon when the period is open.
func (p SubscriptionPeriod) EffectiveEnd(horizon time.Time) time.Time {
	if p.EndDate == nil {
		return horizon
	}
	return *p.EndDate
}

// Payment is a single billing event.
type Payment struct {
	ID             int64         `gorm:"column:payment_id;primaryKey;autoIncrement:false" json:"payment_id"`
	UserID         int64         `gorm:"column:user_id;not null;index" json:"user_id"`
	SubscriptionID int64         `gorm:"column:subscription_id;not null;index" json:"subscription_id"`
	Amount         Amount        `gorm:"column:amount;type:numeric(10,2);not null" json:"amount"`
	PaymentDate    time.Time     `gorm:"column:payment_date;type:date;not null" json:"payment_date"`
	Status         PaymentStatus `gorm:"column:payment_status;type:text;not null" json:"payment_status"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// ActivityEvent is one viewing session.
type ActivityEvent struct {
	UserID           int64     `gorm:"column:user_id;not null;index" json:"user_id"`
	ActivityDate     time.Time `gorm:"column:activity_date;type:date;not null" json:"activity_date"`
	WatchTimeMinutes float64   `gorm:"column:watch_time_minutes;type:double precision;not null" json:"watch_time_minutes"`
}

// TableName sets the database table name.
func (ActivityEvent) TableName() string { return "user_activity" }

// DatasetCounts reports row counts per table.
type DatasetCounts struct {
	Users         int `json:"users"`
	Subscriptions int `json:"subscriptions"`
	Payments      int `json:"payments"`
	Activity      int `json:"activity"`
}

// Dataset is the immutable result of a generation run.
type Dataset struct {
	users         []User
	subscriptions []SubscriptionPeriod
	payments      []Payment
	activity      []ActivityEvent
}

// NewDataset freezes the given tables. The slices are copied.
func NewDataset(users []User, subscriptions []SubscriptionPeriod, payments []Payment, activity []ActivityEvent) Dataset {
	return Dataset{
		users:         append([]User(nil), users...),
		subscriptions: clonePeriods(subscriptions),
		payments:      append([]Payment(nil), payments...),
		activity:      append([]ActivityEvent(nil), activity...),
	}
}

func (d Dataset) Users() []User { return append([]User(nil), d.users...) }

func (d Dataset) Subscriptions() []SubscriptionPeriod { return clonePeriods(d.subscriptions) }

func (d Dataset) Payments() []Payment { return append([]Payment(nil), d.payments...) }

func (d Dataset) Activity() []ActivityEvent { return append([]ActivityEvent(nil), d.activity...) }

func (d Dataset) Counts() DatasetCounts {
	return DatasetCounts{
		Users:         len(d.users),
		Subscriptions: len(d.subscriptions),
		Payments:      len(d.payments),
		Activity:      len(d.activity),
	}
}

func clonePeriods(in []SubscriptionPeriod) []SubscriptionPeriod {
	if in == nil {
		return nil
	}
	out := make([]SubscriptionPeriod, len(in))
	for i, p := range in {
		if p.EndDate != nil {
			end := *p.EndDate
			p.EndDate = &end
		}
		out[i] = p
	}
	return out
}
