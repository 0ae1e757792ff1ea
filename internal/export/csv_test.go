package export

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/sms-ledger/internal/domain"
)

func sampleTx() *domain.Transaction {
	return &domain.Transaction{
		ID:               1,
		Amount:           decimal.RequireFromString("150"),
		Direction:        domain.Debit,
		AccountNumber:    "XX3248",
		Date:             civil.Date{Year: 2025, Month: time.October, Day: 2},
		Time:             civil.Time{Hour: 20, Minute: 5, Second: 59},
		CounterpartyName: "MANGARAM CHOWDARY",
		Reference:        "UPI/P2M/527537387973/MANGARAM CHOWDARY",
		Institution:      "Axis Bank",
		UserTag:          "Groceries",
		IsTagged:         true,
		EntryMethod:      domain.Automatic,
	}
}

func TestWriteCSVHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, Header+"\n", buf.String())
}

func TestWriteCSVRow(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []*domain.Transaction{sampleTx()}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t,
		`2025-10-02,20:05:59,DEBIT,150.00,"MANGARAM CHOWDARY","Axis Bank",XX3248,"UPI/P2M/527537387973/MANGARAM CHOWDARY","Groceries",AUTOMATIC`,
		lines[1])
}

func TestWriteCSVEmptyOptionals(t *testing.T) {
	tx := sampleTx()
	tx.Reference = ""
	tx.UserTag = ""
	tx.IsTagged = false

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []*domain.Transaction{tx}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Contains(t, lines[1], `XX3248,"","",AUTOMATIC`)
}

func TestWriteCSVEscapesQuotesAndCommas(t *testing.T) {
	tx := sampleTx()
	tx.CounterpartyName = `ACME "STORES", LTD`

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []*domain.Transaction{tx}))

	assert.Contains(t, buf.String(), `"ACME ""STORES"", LTD"`)
}

func TestWriteCSVManualEntry(t *testing.T) {
	tx := sampleTx()
	tx.EntryMethod = domain.Manual
	tx.Institution = domain.ManualInstitution
	tx.Reference = ""

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []*domain.Transaction{tx}))

	assert.Contains(t, buf.String(), `"Manual Entry",XX3248,""`)
	assert.Contains(t, buf.String(), ",MANUAL")
}

type fakeUploader struct {
	bucket, object string
	data           []byte
	err            error
}

func (f *fakeUploader) Upload(_ context.Context, bucket, object string, data []byte) error {
	f.bucket, f.object, f.data = bucket, object, data
	return f.err
}

func TestBackup(t *testing.T) {
	u := &fakeUploader{}
	now := time.Date(2025, time.October, 2, 21, 0, 0, 0, time.UTC)

	object, err := Backup(context.Background(), u, "ledger-backups", []*domain.Transaction{sampleTx()}, now)
	require.NoError(t, err)

	assert.Equal(t, "ledger/2025-10-02-transactions.csv", object)
	assert.Equal(t, "ledger-backups", u.bucket)
	assert.Equal(t, object, u.object)
	assert.True(t, strings.HasPrefix(string(u.data), Header))
}
