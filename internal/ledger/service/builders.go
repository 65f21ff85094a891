package service

import (
	"time"

	ledgerdomain "github.com/smallbiznis/subsight/internal/ledger/domain"
)

// UserBuilder assigns sequential user ids starting at 1.
type UserBuilder struct {
	rows []ledgerdomain.User
}

func NewUserBuilder(capacity int) *UserBuilder {
	return &UserBuilder{rows: make([]ledgerdomain.User, 0, capacity)}
}

func (b *UserBuilder) Emit(u ledgerdomain.User) int64 {
	u.ID = int64(len(b.rows) + 1)
	b.rows = append(b.rows, u)
	return u.ID
}

func (b *UserBuilder) Rows() []ledgerdomain.User { return b.rows }

// SubscriptionBuilder assigns subscription ids across all users.
type SubscriptionBuilder struct {
	rows []ledgerdomain.SubscriptionPeriod
}

func NewSubscriptionBuilder(capacity int) *SubscriptionBuilder {
	return &SubscriptionBuilder{rows: make([]ledgerdomain.SubscriptionPeriod, 0, capacity)}
}

func (b *SubscriptionBuilder) Emit(p ledgerdomain.SubscriptionPeriod) int64 {
	p.ID = int64(len(b.rows) + 1)
	b.rows = append(b.rows, p)
	return p.ID
}

func (b *SubscriptionBuilder) Rows() []ledgerdomain.SubscriptionPeriod { return b.rows }

// PaymentBuilder assigns payment ids in emission order.
type PaymentBuilder struct {
	rows     []ledgerdomain.Payment
	byStatus map[ledgerdomain.PaymentStatus]int
}

func NewPaymentBuilder(capacity int) *PaymentBuilder {
	return &PaymentBuilder{
		rows:     make([]ledgerdomain.Payment, 0, capacity),
		byStatus: map[ledgerdomain.PaymentStatus]int{},
	}
}

func (b *PaymentBuilder) Emit(p ledgerdomain.Payment) int64 {
	p.ID = int64(len(b.rows) + 1)
	b.rows = append(b.rows, p)
	b.byStatus[p.Status]++
	return p.ID
}

func (b *PaymentBuilder) Rows() []ledgerdomain.Payment { return b.rows }

// CountByStatus returns how many payments carry status.
func (b *PaymentBuilder) CountByStatus(status ledgerdomain.PaymentStatus) int {
	return b.byStatus[status]
}

type ActivityBuilder struct {
	rows []ledgerdomain.ActivityEvent
}

func NewActivityBuilder(capacity int) *ActivityBuilder {
	return &ActivityBuilder{rows: make([]ledgerdomain.ActivityEvent, 0, capacity)}
}

func (b *ActivityBuilder) Emit(e ledgerdomain.ActivityEvent) {
	b.rows = append(b.rows, e)
}

func (b *ActivityBuilder) Rows() []ledgerdomain.ActivityEvent { return b.rows }

func addDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
