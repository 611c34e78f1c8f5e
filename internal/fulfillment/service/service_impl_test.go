package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/smallbiznis/mysteryart/internal/checkout/domain"
	"github.com/smallbiznis/mysteryart/internal/clock"
	"github.com/smallbiznis/mysteryart/internal/config"
	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
	"github.com/smallbiznis/mysteryart/internal/fulfillment/lock"
	"github.com/smallbiznis/mysteryart/internal/fulfillment/store"
	paymentdomain "github.com/smallbiznis/mysteryart/internal/payment/domain"
	tierservice "github.com/smallbiznis/mysteryart/internal/tier/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu         sync.Mutex
	images     []fulfillmentdomain.Image
	searchErr  error
	emptyPages map[int]bool
	searches   []int
	downloads  int
}

func (f *fakeSource) Search(ctx context.Context, page int) (*fulfillmentdomain.ImagePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, page)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if f.emptyPages[page] {
		return &fulfillmentdomain.ImagePage{Page: page}, nil
	}
	return &fulfillmentdomain.ImagePage{Page: page, TotalResults: len(f.images), Images: f.images}, nil
}

func (f *fakeSource) Download(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads++
	return []byte("jpeg:" + url), nil
}

func (f *fakeSource) MaxPages() int { return 10 }

func (f *fakeSource) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searches)
}

type fakeSink struct {
	mu       sync.Mutex
	failures int
	delay    time.Duration
	payloads []*fulfillmentdomain.Payload
	attempts int
}

func (f *fakeSink) Dispatch(ctx context.Context, payload *fulfillmentdomain.Payload) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failures > 0 {
		f.failures--
		return errors.New("sink returned 502")
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeSink) delivered() []*fulfillmentdomain.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fulfillmentdomain.Payload(nil), f.payloads...)
}

type fakeAlerter struct {
	mu      sync.Mutex
	records []*fulfillmentdomain.Record
}

func (f *fakeAlerter) AlertExhausted(ctx context.Context, record *fulfillmentdomain.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

type failingPutStore struct {
	*store.Memory
	failOn fulfillmentdomain.Status
}

func (s *failingPutStore) Put(ctx context.Context, record *fulfillmentdomain.Record) error {
	if record.Status == s.failOn {
		return errors.New("database unavailable")
	}
	return s.Memory.Put(ctx, record)
}

type harness struct {
	pipeline *Pipeline
	store    fulfillmentdomain.Store
	source   *fakeSource
	sink     *fakeSink
	alerter  *fakeAlerter
	clock    *clock.FakeClock
}

func newHarness(t *testing.T, opts ...func(*Params)) *harness {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	catalog, err := tierservice.NewCatalog(config.DefaultTierDefinitions())
	require.NoError(t, err)

	h := &harness{
		store: store.NewMemory(),
		source: &fakeSource{images: []fulfillmentdomain.Image{
			{ID: "101", URL: "https://images.example/101.jpg", PageURL: "https://pexels.example/101", Photographer: "Ada", AltText: "Blue shapes"},
			{ID: "102", URL: "https://images.example/102.jpg", Photographer: "Lin"},
			{ID: "103", URL: "https://images.example/103.jpg", Photographer: "Kai"},
		}},
		sink:    &fakeSink{},
		alerter: &fakeAlerter{},
		clock:   clock.NewFakeClock(testNow),
	}

	p := Params{
		Config: config.Config{
			Fulfillment: config.FulfillmentConfig{MaxAttempts: 3, AttemptTimeout: 5 * time.Second},
			Sink:        config.SinkConfig{IncludeArchive: true},
		},
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   h.clock,
		Store:   h.store,
		Locker:  lock.NewLocal(),
		Source:  h.source,
		Sink:    h.sink,
		Alerter: h.alerter,
		Catalog: catalog,
	}
	for _, opt := range opts {
		opt(&p)
	}
	h.store = p.Store
	h.pipeline = New(p)
	return h
}

func completedEvent(orderID, tierID string, price, tip int64) *paymentdomain.PaymentEvent {
	return &paymentdomain.PaymentEvent{
		Kind:            paymentdomain.KindCompleted,
		Provider:        "stripe",
		ProviderEventID: "evt_" + orderID,
		EventType:       "checkout.session.completed",
		OrderID:         orderID,
		AmountPaidCents: price + tip,
		Currency:        "usd",
		BuyerEmail:      "buyer@example.com",
		RawMetadata:     map[string]string{"order_id": orderID, "tier_id": tierID},
		Intent: checkoutdomain.OrderIntent{
			OrderID:    orderID,
			TierID:     tierID,
			PriceCents: price,
			TipCents:   tip,
			BuyerEmail: "buyer@example.com",
		},
		OccurredAt: testNow,
	}
}

func TestHandleFulfillsOnceAcrossRedeliveries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	event := completedEvent("ord_once", "discovery", 1000, 500)

	res, err := h.pipeline.Handle(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, fulfillmentdomain.OutcomeFulfilled, res.Outcome)
	assert.Equal(t, fulfillmentdomain.StatusNotified, res.Record.Status)
	require.NotNil(t, res.Record.NotifiedAt)

	for i := 0; i < 3; i++ {
		res, err = h.pipeline.Handle(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, fulfillmentdomain.OutcomeAlreadyFulfilled, res.Outcome)
	}

	payloads := h.sink.delivered()
	require.Len(t, payloads, 1)
	assert.Equal(t, "ord_once", payloads[0].OrderID)
	assert.Equal(t, "10.00", payloads[0].Price)
	assert.Equal(t, "5.00", payloads[0].Tip)
	assert.Equal(t, "15.00", payloads[0].Total)
	assert.Equal(t, "Discovery Collection", payloads[0].TierTitle)
	assert.Equal(t, "USD", payloads[0].Currency)
	require.NotNil(t, payloads[0].Archive)
	assert.Equal(t, "application/zip", payloads[0].Archive.MimeType)
	assert.Equal(t, 1, h.source.searchCount())
}

func TestHandleConcurrentDeliveriesDispatchOnce(t *testing.T) {
	h := newHarness(t)
	h.sink.delay = 10 * time.Millisecond
	event := completedEvent("ord_race", "explorer", 2000, 0)

	var wg sync.WaitGroup
	outcomes := make(chan fulfillmentdomain.Outcome, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.pipeline.Handle(context.Background(), event)
			if assert.NoError(t, err) {
				outcomes <- res.Outcome
			}
		}()
	}
	wg.Wait()
	close(outcomes)

	counts := map[fulfillmentdomain.Outcome]int{}
	for outcome := range outcomes {
		counts[outcome]++
	}
	assert.Equal(t, 1, counts[fulfillmentdomain.OutcomeFulfilled])
	assert.Equal(t, 7, counts[fulfillmentdomain.OutcomeAlreadyFulfilled])
	assert.Len(t, h.sink.delivered(), 1)
}

func TestHandleIgnoresNonCompletedEvents(t *testing.T) {
	h := newHarness(t)
	event := completedEvent("ord_other", "discovery", 1000, 0)
	event.Kind = paymentdomain.KindOther

	res, err := h.pipeline.Handle(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, fulfillmentdomain.OutcomeIgnored, res.Outcome)

	rec, err := h.store.Get(context.Background(), "ord_other")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Empty(t, h.sink.delivered())
}

func TestHandleRejectsMissingOrderID(t *testing.T) {
	h := newHarness(t)
	event := completedEvent(" ", "discovery", 1000, 0)
	_, err := h.pipeline.Handle(context.Background(), event)
	assert.ErrorIs(t, err, fulfillmentdomain.ErrInvalidEvent)
}

func TestHandleResumesPackagedRecordWithoutFetching(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	entry, archive := ArtifactNames("777")
	require.NoError(t, h.store.Put(ctx, &fulfillmentdomain.Record{
		ID:         1,
		OrderID:    "ord_packaged",
		Status:     fulfillmentdomain.StatusPackaged,
		Attempts:   1,
		TierID:     "curator",
		PriceCents: 4000,
		TipCents:   1000,
		Currency:   "usd",
		BuyerEmail: "buyer@example.com",
		Artifact: fulfillmentdomain.ArtifactDescriptor{
			SourceID: "777", SourceURL: "https://images.example/777.jpg", EntryName: entry, PackagedName: archive,
		},
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}))

	res, err := h.pipeline.Handle(ctx, completedEvent("ord_packaged", "curator", 4000, 1000))
	require.NoError(t, err)
	assert.Equal(t, fulfillmentdomain.OutcomeFulfilled, res.Outcome)
	assert.Equal(t, 0, h.source.searchCount())
	assert.Equal(t, 0, h.source.downloads)

	payloads := h.sink.delivered()
	require.Len(t, payloads, 1)
	assert.Equal(t, "777", payloads[0].ImageFile.SourceID)
	assert.Equal(t, "50.00", payloads[0].Total)
	assert.Nil(t, payloads[0].Archive)
	assert.Equal(t, 2, res.Record.Attempts)
}

func TestHandleEmptySearchFailsWithoutPackaging(t *testing.T) {
	h := newHarness(t)
	h.source.images = nil
	ctx := context.Background()

	res, err := h.pipeline.Handle(ctx, completedEvent("ord_empty", "discovery", 1000, 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, fulfillmentdomain.ErrSourceUnavailable)
	assert.Equal(t, fulfillmentdomain.OutcomeFailed, res.Outcome)

	rec, err := h.store.Get(ctx, "ord_empty")
	require.NoError(t, err)
	assert.Equal(t, fulfillmentdomain.StatusFailed, rec.Status)
	assert.Equal(t, fulfillmentdomain.FailureSourceUnavailable, rec.FailureReason)
	assert.True(t, rec.Artifact.Empty())
	require.NotNil(t, rec.LastError)
	assert.Empty(t, h.sink.delivered())
}

func TestHandleRetriesFailedRecordAndSelectsSameImage(t *testing.T) {
	h := newHarness(t)
	h.sink.failures = 1
	ctx := context.Background()
	event := completedEvent("ord_retry", "patron", 10000, 0)

	res, err := h.pipeline.Handle(ctx, event)
	require.Error(t, err)
	assert.ErrorIs(t, err, fulfillmentdomain.ErrNotifyFailed)
	assert.Equal(t, fulfillmentdomain.OutcomeFailed, res.Outcome)
	firstImage := res.Record.Artifact.SourceID
	require.NotEmpty(t, firstImage)

	h.clock.Advance(time.Minute)
	res, err = h.pipeline.Handle(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, fulfillmentdomain.OutcomeFulfilled, res.Outcome)
	assert.Equal(t, 2, res.Record.Attempts)
	assert.Nil(t, res.Record.LastError)
	assert.Equal(t, fulfillmentdomain.FailureNone, res.Record.FailureReason)
	assert.Equal(t, firstImage, res.Record.Artifact.SourceID)

	h.source.mu.Lock()
	searches := append([]int(nil), h.source.searches...)
	h.source.mu.Unlock()
	require.Len(t, searches, 2)
	assert.Equal(t, searches[0], searches[1])
}

func TestHandleExhaustsRetryBudgetAndAlerts(t *testing.T) {
	h := newHarness(t)
	h.sink.failures = 100
	ctx := context.Background()
	event := completedEvent("ord_exhaust", "discovery", 1000, 0)

	for attempt := 1; attempt <= 2; attempt++ {
		res, err := h.pipeline.Handle(ctx, event)
		require.Error(t, err)
		assert.Equal(t, fulfillmentdomain.OutcomeFailed, res.Outcome, "attempt %d", attempt)
	}

	res, err := h.pipeline.Handle(ctx, event)
	require.Error(t, err)
	assert.ErrorIs(t, err, fulfillmentdomain.ErrRetryExhausted)
	assert.ErrorIs(t, err, fulfillmentdomain.ErrNotifyFailed)
	assert.Equal(t, fulfillmentdomain.OutcomeExhausted, res.Outcome)
	require.Len(t, h.alerter.records, 1)
	assert.Equal(t, "ord_exhaust", h.alerter.records[0].OrderID)

	res, err = h.pipeline.Handle(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, fulfillmentdomain.OutcomeExhausted, res.Outcome)
	assert.Equal(t, 3, h.sink.attempts)
	assert.Len(t, h.alerter.records, 1)
}

func TestHandleReportsFulfilledWhenFinalPutFails(t *testing.T) {
	h := newHarness(t, func(p *Params) {
		p.Store = &failingPutStore{Memory: store.NewMemory(), failOn: fulfillmentdomain.StatusNotified}
	})

	res, err := h.pipeline.Handle(context.Background(), completedEvent("ord_putfail", "discovery", 1000, 0))
	require.Error(t, err)
	assert.Equal(t, fulfillmentdomain.OutcomeFulfilled, res.Outcome)
	assert.Len(t, h.sink.delivered(), 1)
}

func TestHandleLockTimeoutIsLockBusy(t *testing.T) {
	locker := lock.NewLocal()
	h := newHarness(t, func(p *Params) {
		p.Locker = locker
		p.Config.Fulfillment.AttemptTimeout = 20 * time.Millisecond
	})
	release, err := locker.Acquire(context.Background(), "ord_busy")
	require.NoError(t, err)
	defer release()

	_, err = h.pipeline.Handle(context.Background(), completedEvent("ord_busy", "discovery", 1000, 0))
	assert.ErrorIs(t, err, fulfillmentdomain.ErrLockBusy)
}

func TestRedriveUsesStoredRecord(t *testing.T) {
	h := newHarness(t)
	h.sink.failures = 1
	ctx := context.Background()

	_, err := h.pipeline.Handle(ctx, completedEvent("ord_redrive", "collector", 8000, 250))
	require.Error(t, err)

	rec, err := h.pipeline.Get(ctx, "ord_redrive")
	require.NoError(t, err)

	res, err := h.pipeline.Redrive(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, fulfillmentdomain.OutcomeFulfilled, res.Outcome)
	payloads := h.sink.delivered()
	require.Len(t, payloads, 1)
	assert.Equal(t, "82.50", payloads[0].Total)
}

func TestGetMissingIsNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.pipeline.Get(context.Background(), "ord_nope")
	assert.ErrorIs(t, err, fulfillmentdomain.ErrNotFound)
}

func TestSelectionIsDeterministicPerOrder(t *testing.T) {
	for i := 0; i < 5; i++ {
		orderID := fmt.Sprintf("ord_%d", i)
		a := selectionRand(orderID, 0)
		b := selectionRand(orderID, 0)
		assert.Equal(t, a.IntN(100), b.IntN(100))
	}
}

func TestHandleMovesOffEmptyPageOnRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	event := completedEvent("ord_reroll", "discovery", 1000, 0)

	seeded := 1 + selectionRand("ord_reroll", 0).IntN(h.source.MaxPages())
	h.source.emptyPages = map[int]bool{seeded: true}

	res, err := h.pipeline.Handle(ctx, event)
	require.Error(t, err)
	assert.ErrorIs(t, err, fulfillmentdomain.ErrSourceUnavailable)
	assert.Equal(t, fulfillmentdomain.OutcomeFailed, res.Outcome)

	res, err = h.pipeline.Handle(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, fulfillmentdomain.OutcomeFulfilled, res.Outcome)
	assert.Len(t, h.sink.delivered(), 1)

	h.source.mu.Lock()
	searches := append([]int(nil), h.source.searches...)
	h.source.mu.Unlock()
	require.Len(t, searches, 2)
	assert.Equal(t, seeded, searches[0])
	assert.NotEqual(t, seeded, searches[1])
}

func TestSelectionRerollOnlyAfterSourceFailure(t *testing.T) {
	rec := &fulfillmentdomain.Record{OrderID: "ord_x", Attempts: 3, FailureReason: fulfillmentdomain.FailureNotify}
	assert.Equal(t, 0, selectionReroll(rec))

	rec.FailureReason = fulfillmentdomain.FailureSourceUnavailable
	assert.Equal(t, 2, selectionReroll(rec))

	rec.Attempts = 1
	assert.Equal(t, 0, selectionReroll(rec))
}
