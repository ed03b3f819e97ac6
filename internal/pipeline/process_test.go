package pipeline

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"receiptbook/internal"
	"receiptbook/internal/config"
	"receiptbook/internal/connectors"
	"receiptbook/internal/ledger"
	"receiptbook/internal/logger"
	"receiptbook/internal/storage"
)

type stubExtractor struct {
	records map[string]*internal.Record
	calls   int
}

func (s *stubExtractor) Extract(_ context.Context, doc internal.Document) (*internal.Record, internal.Strategy) {
	s.calls++
	rec, ok := s.records[doc.Name]
	if !ok || rec == nil {
		return nil, internal.StrategyNone
	}
	out := *rec
	return &out, internal.StrategyText
}

type stubMail struct {
	unread   []internal.MailMessage
	contents map[string]*connectors.MailContent
	marked   []string
}

func (m *stubMail) Provider() string { return "stub" }

func (m *stubMail) ListUnread(context.Context) []internal.MailMessage { return m.unread }

func (m *stubMail) MarkRead(_ context.Context, id string) bool {
	m.marked = append(m.marked, id)
	return true
}

func (m *stubMail) FetchDocuments(_ context.Context, id string) *connectors.MailContent {
	return m.contents[id]
}

func pdfDoc(name string) internal.Document {
	return internal.Document{Name: name, Ext: "pdf", Content: []byte("%PDF-1.4")}
}

func newTestService(t *testing.T, ex Extractor, mail MailSource) (*ProcessingService, *ledger.MemoryTable, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	table := ledger.NewMemoryTable()
	ldg := ledger.New(table, ledger.SchemaV1, logger.Nop())
	cfg := config.Config{MailListenerDefaultCategory: "Equipment"}
	return NewProcessingService(ex, ldg, mail, db, cfg, logger.Nop()), table, db
}

func TestProcessMailCommitsAndMarksRead(t *testing.T) {
	ex := &stubExtractor{records: map[string]*internal.Record{
		"a.pdf": {Item: "drill bits", Cost: "12.50", Date: "2024-03-04", Source: "hardware co", ReceiptNumber: "R-1"},
	}}
	mail := &stubMail{
		unread: []internal.MailMessage{
			{ID: "1", Subject: "Your receipt", Name: "Ann", Email: "ann@example.com", From: "Ann <ann@example.com>"},
			{ID: "2", Subject: "Weekly digest"},
		},
		contents: map[string]*connectors.MailContent{
			"1": {Documents: []internal.Document{pdfDoc("a.pdf")}, AttachmentNames: []string{"a.pdf"}},
			"2": {Text: "stories of the week"},
		},
	}
	svc, table, db := newTestService(t, ex, mail)

	summary, err := svc.ProcessMail(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Listed != 2 || summary.Committed != 1 || summary.Skipped != 1 {
		t.Fatalf("summary=%+v", summary)
	}
	if len(mail.marked) != 1 || mail.marked[0] != "1" {
		t.Fatalf("marked=%v", mail.marked)
	}

	rows, _ := table.Rows(context.Background())
	if len(rows) != 2 {
		t.Fatalf("rows=%v", rows)
	}
	// v1 layout: Sender Name, Sender Email, Item, Cost, Date, Source, Receipt Number
	if rows[1][0] != "Ann" || rows[1][1] != "ann@example.com" || rows[1][6] != "R-1" {
		t.Fatalf("row=%v", rows[1])
	}

	msg, err := db.GetMessage("stub", "1")
	if err != nil || msg == nil || msg.Status != StatusCommitted {
		t.Fatalf("journal message=%+v err=%v", msg, err)
	}
	skipped, _ := db.GetMessage("stub", "2")
	if skipped == nil || skipped.Status != StatusSkipped {
		t.Fatalf("skipped=%+v", skipped)
	}
	runs, err := db.ListRuns(10)
	if err != nil || len(runs) != 2 {
		t.Fatalf("runs=%+v err=%v", runs, err)
	}
}

func TestProcessMailLeavesFailuresUnread(t *testing.T) {
	ex := &stubExtractor{records: map[string]*internal.Record{
		"dup.pdf": {Item: "tape", Cost: "3", Date: "2024-03-04", Source: "shop", ReceiptNumber: "R-9"},
	}}
	mail := &stubMail{
		unread: []internal.MailMessage{
			{ID: "1", Subject: "Receipt"},
			{ID: "2", Subject: "Receipt"},
			{ID: "3", Subject: "Receipt"},
		},
		contents: map[string]*connectors.MailContent{
			"1": {Documents: []internal.Document{pdfDoc("broken.pdf")}},
			"2": {Documents: []internal.Document{pdfDoc("dup.pdf")}},
		},
	}
	svc, _, _ := newTestService(t, ex, mail)

	first, err := svc.Append(context.Background(), internal.Record{Item: "tape", Cost: "3", Date: "2024-03-04", Source: "shop", ReceiptNumber: "R-9"}, "")
	if err != nil || first.Status != internal.AppendSuccess {
		t.Fatalf("seed append=%+v", first)
	}

	summary, err := svc.ProcessMail(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(mail.marked) != 0 {
		t.Fatalf("nothing should be marked read: %v", mail.marked)
	}
	want := []string{StatusExtractFailed, StatusDuplicate, StatusFetchFailed}
	for i, m := range summary.Messages {
		if m.Status != want[i] {
			t.Fatalf("message %s status=%s want %s", m.MessageID, m.Status, want[i])
		}
	}
}

func TestAppendAppliesDefaultCategoryAndMarksRead(t *testing.T) {
	mail := &stubMail{}
	svc, _, _ := newTestService(t, &stubExtractor{}, mail)
	ctx := context.Background()

	res, err := svc.Append(ctx, internal.Record{Item: "saw", Cost: "20", Date: "2024-01-02", Source: "shop", ReceiptNumber: "X1"}, "77")
	if err != nil || res.Status != internal.AppendSuccess {
		t.Fatalf("res=%+v", res)
	}
	if len(mail.marked) != 1 || mail.marked[0] != "77" {
		t.Fatalf("marked=%v", mail.marked)
	}

	again, err := svc.Append(ctx, internal.Record{Item: "saw", Cost: "20", Date: "2024-01-02", Source: "shop", ReceiptNumber: "X1"}, "78")
	if err != nil || again.Status != internal.AppendDuplicate {
		t.Fatalf("again=%+v", again)
	}
	if len(mail.marked) != 1 {
		t.Fatalf("duplicate must not mark read: %v", mail.marked)
	}

	dup, err := svc.CheckDuplicate(ctx, " X1 ")
	if err != nil || !dup {
		t.Fatalf("dup=%v err=%v", dup, err)
	}
}

func TestAppendRejectsUnreadableEdits(t *testing.T) {
	mail := &stubMail{}
	svc, table, _ := newTestService(t, &stubExtractor{}, mail)
	ctx := context.Background()

	cases := []internal.Record{
		{Item: "saw", Cost: "20", Date: "next tuesday", Source: "shop", ReceiptNumber: "V1"},
		{Item: "saw", Cost: "forty five", Date: "2024-01-02", Source: "shop", ReceiptNumber: "V2"},
	}
	for _, rec := range cases {
		res, err := svc.Append(ctx, rec, "5")
		if !errors.Is(err, ErrInvalidRecord) || res.Status != internal.AppendError {
			t.Fatalf("rec=%+v res=%+v err=%v", rec, res, err)
		}
	}
	if rows, _ := table.Rows(ctx); len(rows) != 0 {
		t.Fatalf("rejected records reached the ledger: %v", rows)
	}
	if len(mail.marked) != 0 {
		t.Fatalf("marked=%v", mail.marked)
	}
}

func TestAppendBoundsEditedFields(t *testing.T) {
	svc, table, _ := newTestService(t, &stubExtractor{}, nil)
	ctx := context.Background()
	long := strings.Repeat("a", 300)

	res, err := svc.Append(ctx, internal.Record{
		Item:          long + " " + long + " " + long,
		Cost:          "USD 45.00",
		Date:          "March 4, 2024",
		Source:        long,
		ReceiptNumber: " V3 ",
		Sender:        &internal.SenderIdentity{Name: long, Email: "ann@example.com"},
	}, "")
	if err != nil || res.Status != internal.AppendSuccess {
		t.Fatalf("res=%+v err=%v", res, err)
	}

	rows, _ := table.Rows(ctx)
	// v1 layout: Sender Name, Sender Email, Item, Cost, Date, Source, Receipt Number
	row := rows[1]
	if len([]rune(row[0])) > maxFieldLen || len([]rune(row[2])) > maxFieldLen || len([]rune(row[5])) > maxFieldLen {
		t.Fatalf("fields not bounded: %v", row)
	}
	if row[3] != "45" || row[4] != "2024-03-04" || row[6] != "V3" {
		t.Fatalf("row=%v", row)
	}
}

func TestEnsureHeaderRecordsCheckTime(t *testing.T) {
	svc, _, _ := newTestService(t, &stubExtractor{}, nil)
	before, err := svc.HeaderCheckedAt()
	if err != nil || before != nil {
		t.Fatalf("before=%v err=%v", before, err)
	}

	if err := svc.EnsureHeader(context.Background()); err != nil {
		t.Fatal(err)
	}
	after, err := svc.HeaderCheckedAt()
	if err != nil || after == nil {
		t.Fatalf("after=%v err=%v", after, err)
	}
	if time.Since(*after) > time.Minute {
		t.Fatalf("stale check time %v", after)
	}
}

func TestProcessMailLogsThroughContextLogger(t *testing.T) {
	mail := &stubMail{
		unread:   []internal.MailMessage{{ID: "1", Subject: "Weekly digest"}},
		contents: map[string]*connectors.MailContent{"1": {Text: "stories"}},
	}
	svc, _, _ := newTestService(t, &stubExtractor{}, mail)

	var buf bytes.Buffer
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(&buf).With().Str("request_id", "req-1").Logger())
	if _, err := svc.ProcessMail(ctx); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-1"`) || !strings.Contains(out, "mail.message.done") {
		t.Fatalf("log=%s", out)
	}
}

func TestExtractReportsFailure(t *testing.T) {
	svc, _, _ := newTestService(t, &stubExtractor{}, nil)
	rec, err := svc.Extract(context.Background(), pdfDoc("missing.pdf"))
	if rec != nil || err != ErrExtractionFailed {
		t.Fatalf("rec=%v err=%v", rec, err)
	}
	if _, err := svc.ProcessMail(context.Background()); err != ErrNoMailbox {
		t.Fatalf("err=%v", err)
	}
}
