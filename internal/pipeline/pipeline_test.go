package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/kingrea/postpress/internal/artifact"
	"github.com/kingrea/postpress/internal/config"
	"github.com/kingrea/postpress/internal/easypost"
	"github.com/kingrea/postpress/internal/logging"
	"github.com/kingrea/postpress/internal/rows"
)

const testHeader = "SendTo,Address,Address2,City,State,Zip,CBI Message,SendingFrom,Generic Message"

// fakeCarrier scripts the carrier collaborator. Failure indices are 0-based
// shipment positions; -1 disables the failure.
type fakeCarrier struct {
	failBuyAt      int
	failFetchAt    int
	refundFailures map[string]bool

	created        []*easypost.Shipment
	bought         int
	refundAttempts []string
}

func newFakeCarrier() *fakeCarrier {
	return &fakeCarrier{failBuyAt: -1, failFetchAt: -1, refundFailures: map[string]bool{}}
}

func (f *fakeCarrier) RetrieveAddress(_ context.Context, id string) (*easypost.Address, error) {
	if id == "adr_bad" {
		return nil, &easypost.APIError{Status: 404, Code: "NOT_FOUND", Message: "no such address"}
	}
	return &easypost.Address{ID: id, City: "Omaha", State: "NE"}, nil
}

func (f *fakeCarrier) RetrieveParcel(_ context.Context, id string) (*easypost.Parcel, error) {
	if id == "prcl_bad" {
		return nil, &easypost.APIError{Status: 404, Code: "NOT_FOUND", Message: "no such parcel"}
	}
	return &easypost.Parcel{ID: id, Weight: 16}, nil
}

func (f *fakeCarrier) CreateShipment(_ context.Context, req easypost.NewShipment) (*easypost.Shipment, error) {
	if req.ToAddress.State != "NE" {
		return nil, fmt.Errorf("expected normalized state NE, got %q", req.ToAddress.State)
	}
	n := len(f.created)
	to := req.ToAddress
	shipment := &easypost.Shipment{
		ID:        fmt.Sprintf("shp_%d", n),
		ToAddress: &to,
		Rates: []easypost.Rate{
			{ID: fmt.Sprintf("rate_exp_%d", n), Carrier: "USPS", Service: "Express", Rate: "26.40"},
			{ID: fmt.Sprintf("rate_pri_%d", n), Carrier: "USPS", Service: "Priority", Rate: "7.33"},
			{ID: fmt.Sprintf("rate_fdx_%d", n), Carrier: "FedEx", Service: "Priority", Rate: "5.10"},
		},
	}
	f.created = append(f.created, shipment)
	return shipment, nil
}

func (f *fakeCarrier) Buy(_ context.Context, shipmentID, rateID string) (*easypost.Shipment, error) {
	index := f.bought
	if index == f.failBuyAt {
		return nil, &easypost.APIError{Status: 402, Code: "PAYMENT_FAILED", Message: "card declined"}
	}
	want := fmt.Sprintf("rate_pri_%d", index)
	if rateID != want {
		return nil, fmt.Errorf("expected cheapest eligible rate %s, bought %s", want, rateID)
	}
	f.bought++
	base := f.created[index]
	return &easypost.Shipment{
		ID:           base.ID,
		ToAddress:    base.ToAddress,
		TrackingCode: fmt.Sprintf("9400TRACK%03d", index),
		PostageLabel: &easypost.PostageLabel{LabelURL: fmt.Sprintf("http://assets.test/label_%d.pdf", index)},
	}, nil
}

func (f *fakeCarrier) Refund(_ context.Context, shipmentID string) (*easypost.Shipment, error) {
	f.refundAttempts = append(f.refundAttempts, shipmentID)
	if f.refundFailures[shipmentID] {
		return nil, &easypost.APIError{Status: 422, Code: "REFUND_FAILED", Message: "already in transit"}
	}
	return &easypost.Shipment{ID: shipmentID, RefundStatus: "submitted"}, nil
}

func (f *fakeCarrier) FetchLabel(_ context.Context, labelURL string) ([]byte, error) {
	if f.failFetchAt >= 0 && labelURL == fmt.Sprintf("http://assets.test/label_%d.pdf", f.failFetchAt) {
		return nil, errors.New("label host unreachable")
	}
	return []byte("%PDF-1.4 " + labelURL), nil
}

// fakeMerger records merges and writes a stand-in merged document.
type fakeMerger struct {
	failAt int
	merged []string
}

func newFakeMerger() *fakeMerger { return &fakeMerger{failAt: -1} }

func (m *fakeMerger) Merge(_ context.Context, labelPath, notePath, outPath string) error {
	if m.failAt >= 0 && len(m.merged) == m.failAt {
		return errors.New("pdfjam exited with status 2")
	}
	for _, in := range []string{labelPath, notePath} {
		if _, err := os.Stat(in); err != nil {
			return fmt.Errorf("merge input missing: %w", err)
		}
	}
	m.merged = append(m.merged, outPath)
	return os.WriteFile(outPath, []byte("merged"), 0644)
}

func newTestPipeline(t *testing.T, carrier Carrier, merger Merger, rowCount int) *Pipeline {
	t.Helper()
	workDir := t.TempDir()
	lines := testHeader + "\n"
	for i := 0; i < rowCount; i++ {
		lines += fmt.Sprintf("Person%d,%d Main St,,Omaha,nebraska,68102,msg%d,HQ%d,bye%d\n",
			i, i+1, i, i, i)
	}
	inputPath := filepath.Join(workDir, "recipients.csv")
	if err := os.WriteFile(inputPath, []byte(lines), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.New(workDir, "test_key", "adr_origin", "prcl_box", inputPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.EnsureOutputDirs(); err != nil {
		t.Fatal(err)
	}
	source, err := rows.Open(inputPath)
	if err != nil {
		t.Fatal(err)
	}
	logbook, err := logging.New(cfg.LogPath())
	if err != nil {
		t.Fatal(err)
	}
	return &Pipeline{
		Carrier: carrier,
		Source:  source,
		Store:   artifact.NewStore(cfg.LabelsPath(), cfg.NotesPath(), cfg.ResultsPath()),
		Merger:  merger,
		Config:  cfg,
		Log:     logbook,
	}
}

func readReport(t *testing.T, p *Pipeline) [][]string {
	t.Helper()
	file, err := os.Open(p.Config.ReportPath())
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	return records
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRunHappyPath(t *testing.T) {
	carrier := newFakeCarrier()
	merger := newFakeMerger()
	p := newTestPipeline(t, carrier, merger, 3)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	records := readReport(t, p)
	if len(records) != 4 {
		t.Fatalf("expected header + 3 report rows, got %d records", len(records))
	}
	header := records[0]
	if header[len(header)-2] != "Tracking Code" || header[len(header)-1] != "Label And Note" {
		t.Fatalf("unexpected trailing report columns: %v", header)
	}
	// Original fields sorted by name: Address, Address2, CBI Message, City,
	// Generic Message, SendTo, SendingFrom, State, Zip.
	if header[0] != "Address" || header[5] != "SendTo" {
		t.Fatalf("expected sorted field names, got %v", header)
	}

	for i, record := range records[1:] {
		wantTracking := fmt.Sprintf("9400TRACK%03d", i)
		tracking := record[len(record)-2]
		if tracking != wantTracking {
			t.Fatalf("row %d: expected tracking %s, got %s", i, wantTracking, tracking)
		}
		mergedPath := record[len(record)-1]
		if _, err := os.Stat(mergedPath); err != nil {
			t.Fatalf("row %d: merged document missing: %v", i, err)
		}
		wantName := fmt.Sprintf("ROW_%03d_%s_LABEL_AND_NOTE.pdf", i, wantTracking)
		if filepath.Base(mergedPath) != wantName {
			t.Fatalf("row %d: expected merged name %s, got %s", i, wantName, filepath.Base(mergedPath))
		}
	}

	if got := len(dirEntries(t, p.Config.LabelsPath())); got != 3 {
		t.Fatalf("expected 3 labels, got %d", got)
	}
	if got := len(dirEntries(t, p.Config.NotesPath())); got != 3 {
		t.Fatalf("expected 3 notes, got %d", got)
	}
	if len(carrier.refundAttempts) != 0 {
		t.Fatalf("expected no refunds on success, got %v", carrier.refundAttempts)
	}
}

func TestReferenceResolutionFailsBeforeAnySpend(t *testing.T) {
	carrier := newFakeCarrier()
	p := newTestPipeline(t, carrier, newFakeMerger(), 2)
	p.Config.FromAddressID = "adr_bad"

	err := p.Run(context.Background())
	var refErr *ReferenceError
	if !errors.As(err, &refErr) {
		t.Fatalf("expected ReferenceError, got %v", err)
	}
	if refErr.Kind != "address" {
		t.Fatalf("expected address reference failure, got %s", refErr.Kind)
	}
	if len(carrier.created) != 0 || carrier.bought != 0 {
		t.Fatalf("expected no carrier side effects, created=%d bought=%d",
			len(carrier.created), carrier.bought)
	}
}

func TestMissingInputFailsBeforeAnyCarrierCall(t *testing.T) {
	_, err := rows.Open(filepath.Join(t.TempDir(), "absent.csv"))
	var notFound *rows.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestPurchaseFailureRefundsOnlyPriorShipments(t *testing.T) {
	carrier := newFakeCarrier()
	carrier.failBuyAt = 1
	merger := newFakeMerger()
	p := newTestPipeline(t, carrier, merger, 3)

	err := p.Run(context.Background())
	var purchaseErr *PurchaseError
	if !errors.As(err, &purchaseErr) {
		t.Fatalf("expected PurchaseError, got %v", err)
	}
	if purchaseErr.Index != 1 {
		t.Fatalf("expected failure at index 1, got %d", purchaseErr.Index)
	}
	// Only shipment 0 reached a purchased state; 1 failed to buy and 2 was
	// never attempted.
	if len(carrier.refundAttempts) != 1 || carrier.refundAttempts[0] != "shp_0" {
		t.Fatalf("expected refund of shp_0 only, got %v", carrier.refundAttempts)
	}
	if got := dirEntries(t, p.Config.NotesPath()); len(got) != 0 {
		t.Fatalf("expected no notes after aborted purchase, got %v", got)
	}
	if got := dirEntries(t, p.Config.ResultsPath()); len(got) != 0 {
		t.Fatalf("expected no results after aborted purchase, got %v", got)
	}
	if len(merger.merged) != 0 {
		t.Fatalf("expected no merges, got %v", merger.merged)
	}
}

func TestLabelDownloadFailureRefundsCurrentShipmentToo(t *testing.T) {
	carrier := newFakeCarrier()
	carrier.failFetchAt = 1
	p := newTestPipeline(t, carrier, newFakeMerger(), 3)

	err := p.Run(context.Background())
	var purchaseErr *PurchaseError
	if !errors.As(err, &purchaseErr) {
		t.Fatalf("expected PurchaseError, got %v", err)
	}
	if purchaseErr.Index != 1 {
		t.Fatalf("expected failure at index 1, got %d", purchaseErr.Index)
	}
	// Shipment 1 was bought before its download failed, so it is refunded
	// along with shipment 0.
	want := []string{"shp_0", "shp_1"}
	if len(carrier.refundAttempts) != 2 || carrier.refundAttempts[0] != want[0] || carrier.refundAttempts[1] != want[1] {
		t.Fatalf("expected refunds %v, got %v", want, carrier.refundAttempts)
	}
}

func TestRenderFailureRefundsAllPurchases(t *testing.T) {
	carrier := newFakeCarrier()
	p := newTestPipeline(t, carrier, newFakeMerger(), 3)
	p.Config.Run.Note.Font = "NoSuchFont"

	err := p.Run(context.Background())
	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if len(carrier.refundAttempts) != 3 {
		t.Fatalf("expected all 3 shipments refunded, got %v", carrier.refundAttempts)
	}
	if _, err := os.Stat(p.Config.ReportPath()); !os.IsNotExist(err) {
		t.Fatalf("expected no report after render failure")
	}
}

func TestMergeFailureRefundsAllPurchases(t *testing.T) {
	carrier := newFakeCarrier()
	merger := newFakeMerger()
	merger.failAt = 1
	p := newTestPipeline(t, carrier, merger, 3)

	err := p.Run(context.Background())
	var mergeErr *MergeError
	if !errors.As(err, &mergeErr) {
		t.Fatalf("expected MergeError, got %v", err)
	}
	if mergeErr.Index != 1 {
		t.Fatalf("expected merge failure at index 1, got %d", mergeErr.Index)
	}
	if len(carrier.refundAttempts) != 3 {
		t.Fatalf("expected all 3 shipments refunded, got %v", carrier.refundAttempts)
	}
	if _, err := os.Stat(p.Config.ReportPath()); !os.IsNotExist(err) {
		t.Fatalf("expected no report after merge failure")
	}
}

func TestRefundSweepIsTotal(t *testing.T) {
	carrier := newFakeCarrier()
	carrier.failBuyAt = 2
	carrier.refundFailures["shp_0"] = true
	p := newTestPipeline(t, carrier, newFakeMerger(), 3)

	if err := p.Run(context.Background()); err == nil {
		t.Fatalf("expected run to fail")
	}
	// The failed refund of shp_0 must not stop the attempt on shp_1.
	want := []string{"shp_0", "shp_1"}
	if len(carrier.refundAttempts) != 2 || carrier.refundAttempts[1] != want[1] {
		t.Fatalf("expected sweep over %v, got %v", want, carrier.refundAttempts)
	}
}

func TestCompensateReturnsPerShipmentOutcomes(t *testing.T) {
	carrier := newFakeCarrier()
	carrier.refundFailures["shp_fail"] = true
	p := newTestPipeline(t, carrier, newFakeMerger(), 1)

	purchased := []*easypost.Shipment{
		{ID: "shp_ok", TrackingCode: "T0"},
		{ID: "shp_fail", TrackingCode: "T1"},
		{ID: "shp_ok2", TrackingCode: "T2"},
	}
	outcomes := p.compensate(context.Background(), purchased)
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Failed() || !outcomes[1].Failed() || outcomes[2].Failed() {
		t.Fatalf("unexpected outcome pattern: %+v", outcomes)
	}
	if outcomes[1].TrackingCode != "T1" {
		t.Fatalf("expected tracking code carried through, got %+v", outcomes[1])
	}
}

func TestPositionalCorrelation(t *testing.T) {
	carrier := newFakeCarrier()
	p := newTestPipeline(t, carrier, newFakeMerger(), 3)

	if err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	records := readReport(t, p)
	header := records[0]
	sendToCol := -1
	for i, name := range header {
		if name == "SendTo" {
			sendToCol = i
		}
	}
	if sendToCol == -1 {
		t.Fatalf("SendTo column missing from header %v", header)
	}
	for i, record := range records[1:] {
		wantName := fmt.Sprintf("Person%d", i)
		if record[sendToCol] != wantName {
			t.Fatalf("row %d: expected %s, got %s", i, wantName, record[sendToCol])
		}
		if got := record[len(record)-2]; got != fmt.Sprintf("9400TRACK%03d", i) {
			t.Fatalf("row %d: tracking code out of order: %s", i, got)
		}
	}
}
