package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/sms-ledger/internal/domain"
	"github.com/dvloznov/sms-ledger/internal/settings"
	"github.com/dvloznov/sms-ledger/internal/sms"
	"github.com/dvloznov/sms-ledger/internal/store"
	"github.com/dvloznov/sms-ledger/internal/store/inmemory"
)

const (
	axisSender = "AD-AXISBK-S"
	debitSMS   = "INR 150.00 debited\nA/c no. XX3248\n02-10-25, 20:05:59\nUPI/P2M/527537387973/MANGARAM CHOWDARY\nAxis Bank"
	creditSMS  = "INR 5000.00 credited\nA/c no. XX3248\n28-09-25, 20:05:06 IST\nUPI/P2A/512654122901/MADDU REV/AXIS BANK - Axis Bank"
)

type captureNotifier struct {
	seen []*domain.Transaction
}

func (n *captureNotifier) TransactionRecorded(_ context.Context, tx *domain.Transaction) {
	n.seen = append(n.seen, tx)
}

// failingStore rejects every insert. The embedded interface covers the
// methods the coordinator never touches.
type failingStore struct {
	store.TransactionStore
}

func (f *failingStore) Insert(context.Context, *domain.Transaction) (int64, error) {
	return 0, errors.New("insert refused")
}

func newTestCoordinator(st store.TransactionStore, n *captureNotifier) *Coordinator {
	c := New(zerolog.Nop(), sms.NewParser(zerolog.Nop()), st, nil, settings.Defaults())
	if n != nil {
		c.notifier = n
	}
	return c
}

func TestProcessMessagePersists(t *testing.T) {
	st := inmemory.New(zerolog.Nop())
	defer st.Close()
	c := newTestCoordinator(st, nil)

	res := c.ProcessMessage(context.Background(), Message{Sender: axisSender, Body: debitSMS})

	require.Equal(t, OutcomePersisted, res.Outcome)
	require.NotZero(t, res.TransactionID)

	tx, err := st.GetByID(context.Background(), res.TransactionID)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, domain.Debit, tx.Direction)
	assert.Equal(t, debitSMS, tx.RawMessage)
}

func TestProcessMessageGates(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want Outcome
	}{
		{"wrong sender", Message{Sender: "ZZ-OTHERBK-S", Body: debitSMS}, OutcomeDroppedSender},
		{"empty sender", Message{Sender: "", Body: debitSMS}, OutcomeDroppedSender},
		{"no keywords", Message{Sender: axisSender, Body: "Your OTP is 123456"}, OutcomeDroppedContent},
		{"unparseable", Message{Sender: axisSender, Body: "INR balance debited soon"}, OutcomeDroppedParse},
	}

	st := inmemory.New(zerolog.Nop())
	defer st.Close()
	c := newTestCoordinator(st, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.ProcessMessage(context.Background(), tt.msg)
			assert.Equal(t, tt.want, res.Outcome)
			assert.Zero(t, res.TransactionID)
		})
	}

	n, err := st.UntaggedCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "dropped messages must not reach the store")
}

func TestProcessMessageTimeout(t *testing.T) {
	st := inmemory.New(zerolog.Nop())
	defer st.Close()
	c := newTestCoordinator(st, nil).WithTimeout(time.Nanosecond)

	res := c.ProcessMessage(context.Background(), Message{Sender: axisSender, Body: debitSMS})
	assert.Equal(t, OutcomeDroppedTimeout, res.Outcome)
}

func TestProcessMessagePersistFailure(t *testing.T) {
	c := newTestCoordinator(&failingStore{}, nil)

	res := c.ProcessMessage(context.Background(), Message{Sender: axisSender, Body: debitSMS})
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Error(t, res.Err)
}

func TestProcessBatchIsolation(t *testing.T) {
	st := inmemory.New(zerolog.Nop())
	defer st.Close()
	c := newTestCoordinator(st, nil)

	msgs := []Message{
		{Sender: axisSender, Body: debitSMS},
		{Sender: "SPAM", Body: debitSMS},
		{Sender: axisSender, Body: "no transaction here"},
		{Sender: axisSender, Body: creditSMS},
	}

	results := c.ProcessBatch(context.Background(), msgs)
	require.Len(t, results, len(msgs))

	assert.Equal(t, OutcomePersisted, results[0].Outcome)
	assert.Equal(t, OutcomeDroppedSender, results[1].Outcome)
	assert.Equal(t, OutcomeDroppedContent, results[2].Outcome)
	assert.Equal(t, OutcomePersisted, results[3].Outcome)
	assert.NotEqual(t, results[0].TransactionID, results[3].TransactionID)
}

func TestNotifierReceivesPersistedID(t *testing.T) {
	st := inmemory.New(zerolog.Nop())
	defer st.Close()
	n := &captureNotifier{}
	c := newTestCoordinator(st, n)

	res := c.ProcessMessage(context.Background(), Message{Sender: axisSender, Body: debitSMS})
	require.Equal(t, OutcomePersisted, res.Outcome)

	require.Len(t, n.seen, 1)
	assert.Equal(t, res.TransactionID, n.seen[0].ID)
}

func TestNotifierGatedBySetting(t *testing.T) {
	st := inmemory.New(zerolog.Nop())
	defer st.Close()
	n := &captureNotifier{}
	c := newTestCoordinator(st, n)
	c.settings.NotificationsEnabled = false

	res := c.ProcessMessage(context.Background(), Message{Sender: axisSender, Body: debitSMS})
	require.Equal(t, OutcomePersisted, res.Outcome)
	assert.Empty(t, n.seen)
}

func TestRecordManualEntry(t *testing.T) {
	st := inmemory.New(zerolog.Nop())
	defer st.Close()
	c := newTestCoordinator(st, nil)

	entry := domain.ManualEntry{
		Amount:           decimal.RequireFromString("250.75"),
		Direction:        domain.Debit,
		CounterpartyName: "Corner Shop",
		UserTag:          "Groceries",
		Date:             civil.Date{Year: 2025, Month: time.October, Day: 2},
		Time:             civil.Time{Hour: 9, Minute: 30},
	}

	tx, err := c.RecordManualEntry(context.Background(), entry)
	require.NoError(t, err)
	require.NotZero(t, tx.ID)

	assert.Equal(t, domain.Manual, tx.EntryMethod)
	assert.Equal(t, domain.ManualInstitution, tx.Institution)
	assert.Equal(t, domain.DefaultAccountNumber, tx.AccountNumber)
	assert.True(t, tx.IsTagged)

	stored, err := st.GetByID(context.Background(), tx.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "250.75", stored.Amount.StringFixed(2))
}

func TestRecordManualEntryRejectsInvalid(t *testing.T) {
	st := inmemory.New(zerolog.Nop())
	defer st.Close()
	c := newTestCoordinator(st, nil)

	entry := domain.ManualEntry{
		Direction: domain.Debit,
		Date:      civil.Date{Year: 2025, Month: time.October, Day: 2},
	}

	_, err := c.RecordManualEntry(context.Background(), entry)
	require.Error(t, err)

	n, err := st.UntaggedCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
