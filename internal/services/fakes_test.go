package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"coteri/internal/domain/membership"
	"coteri/internal/domain/verification"
	"coteri/internal/domain/webhook"
	coteri_errors "coteri/pkg/errors"

	"github.com/google/uuid"
)

var errStoreDown = errors.New("store unavailable")

type fakeMemberships struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*membership.Membership
	methods map[uuid.UUID][]string
	err     error
	lookups int
}

func newFakeMemberships(rows ...membership.Membership) *fakeMemberships {
	f := &fakeMemberships{
		rows:    make(map[uuid.UUID]*membership.Membership),
		methods: make(map[uuid.UUID][]string),
	}
	for i := range rows {
		m := rows[i]
		f.rows[m.ID] = &m
	}
	return f
}

func (f *fakeMemberships) get(id uuid.UUID) membership.Membership {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[id]
}

func (f *fakeMemberships) GetActiveAtVenue(ctx context.Context, id, venueID uuid.UUID) (membership.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return membership.Membership{}, f.err
	}
	m, ok := f.rows[id]
	if !ok || m.VenueID != venueID || m.Status != membership.StatusActive {
		return membership.Membership{}, coteri_errors.ErrNotFound
	}
	return *m, nil
}

func (f *fakeMemberships) GetActiveOwned(ctx context.Context, id, userID uuid.UUID) (membership.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return membership.Membership{}, f.err
	}
	m, ok := f.rows[id]
	if !ok || m.UserID != userID || m.Status != membership.StatusActive {
		return membership.Membership{}, coteri_errors.ErrNotFound
	}
	return *m, nil
}

func (f *fakeMemberships) ActivateFromCheckout(ctx context.Context, id uuid.UUID, subscriptionID string, expiresAt time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	m, ok := f.rows[id]
	if !ok || m.Status == membership.StatusRevoked {
		return 0, nil
	}
	m.Status = membership.StatusActive
	m.StripeSubscriptionID.String, m.StripeSubscriptionID.Valid = subscriptionID, true
	m.ExpiresAt.Time, m.ExpiresAt.Valid = expiresAt, true
	return 1, nil
}

func (f *fakeMemberships) ExtendActiveBySubscription(ctx context.Context, subscriptionID string, expiresAt time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for _, m := range f.rows {
		if m.StripeSubscriptionID.String == subscriptionID && m.Status == membership.StatusActive {
			m.ExpiresAt.Time, m.ExpiresAt.Valid = expiresAt, true
			n++
		}
	}
	return n, nil
}

func (f *fakeMemberships) ExpireBySubscription(ctx context.Context, subscriptionID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for _, m := range f.rows {
		if m.StripeSubscriptionID.String == subscriptionID && m.Status != membership.StatusRevoked {
			m.Status = membership.StatusExpired
			n++
		}
	}
	return n, nil
}

func (f *fakeMemberships) RecordVerificationMethod(ctx context.Context, id uuid.UUID, method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.methods[id] {
		if existing == method {
			return nil
		}
	}
	f.methods[id] = append(f.methods[id], method)
	return nil
}

type fakeVerificationEvents struct {
	mu        sync.Mutex
	events    []verification.Event
	insertErr error
}

func (f *fakeVerificationEvents) Insert(ctx context.Context, e *verification.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeVerificationEvents) RecentAttempts(ctx context.Context, staffID, venueID uuid.UUID, since time.Time) ([]verification.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []verification.Attempt
	for _, e := range f.events {
		if e.StaffUserID == staffID && e.VenueID == venueID && !e.OccurredAt.Before(since) {
			out = append(out, verification.Attempt{OccurredAt: e.OccurredAt, Result: e.Result})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (f *fakeVerificationEvents) all() []verification.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]verification.Event(nil), f.events...)
}

type fakeWebhookEvents struct {
	mu       sync.Mutex
	rows     map[string]*webhook.Record
	admitErr error
}

func newFakeWebhookEvents() *fakeWebhookEvents {
	return &fakeWebhookEvents{rows: make(map[string]*webhook.Record)}
}

func (f *fakeWebhookEvents) Admit(ctx context.Context, eventID, eventType string, receivedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.admitErr != nil {
		return false, f.admitErr
	}
	if r, ok := f.rows[eventID]; ok && r.Status != webhook.StatusError {
		return false, nil
	}
	r := &webhook.Record{EventID: eventID, Status: webhook.StatusReceived, ReceivedAt: receivedAt}
	r.EventType.String, r.EventType.Valid = eventType, eventType != ""
	f.rows[eventID] = r
	return true, nil
}

func (f *fakeWebhookEvents) MarkSuccess(ctx context.Context, eventID string, processedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[eventID]; ok {
		r.Status = webhook.StatusSuccess
		r.ProcessedAt.Time, r.ProcessedAt.Valid = processedAt, true
		r.Error.Valid = false
	}
	return nil
}

func (f *fakeWebhookEvents) MarkError(ctx context.Context, eventID, message string, processedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[eventID]; ok {
		r.Status = webhook.StatusError
		r.ProcessedAt.Time, r.ProcessedAt.Valid = processedAt, true
		r.Error.String, r.Error.Valid = message, true
	}
	return nil
}

func (f *fakeWebhookEvents) RecordFetchError(ctx context.Context, eventID, message string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[eventID]; ok && r.Status == webhook.StatusSuccess {
		return nil
	}
	r := &webhook.Record{EventID: eventID, Status: webhook.StatusError, ReceivedAt: at}
	r.ProcessedAt.Time, r.ProcessedAt.Valid = at, true
	r.Error.String, r.Error.Valid = message, true
	f.rows[eventID] = r
	return nil
}

func (f *fakeWebhookEvents) get(eventID string) (webhook.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[eventID]
	if !ok {
		return webhook.Record{}, false
	}
	return *r, true
}

// fakeProvider accepts any delivery whose signature header equals validSig.
type fakeProvider struct {
	validSig   string
	deliveries map[string]webhook.Event
	stored     map[string]webhook.Event
	periodEnds map[string]time.Time
	fetchErr   error
	subErr     error
	subCalls   int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		validSig:   "sig-ok",
		deliveries: make(map[string]webhook.Event),
		stored:     make(map[string]webhook.Event),
		periodEnds: make(map[string]time.Time),
	}
}

func (p *fakeProvider) ConstructEvent(payload []byte, signatureHeader string) (webhook.Event, error) {
	if signatureHeader != p.validSig {
		return webhook.Event{}, errors.New("no signatures found matching the expected signature")
	}
	ev, ok := p.deliveries[string(payload)]
	if !ok {
		return webhook.Event{}, errors.New("unknown payload")
	}
	return ev, nil
}

func (p *fakeProvider) RetrieveEvent(ctx context.Context, eventID string) (webhook.Event, error) {
	if p.fetchErr != nil {
		return webhook.Event{}, p.fetchErr
	}
	ev, ok := p.stored[eventID]
	if !ok {
		return webhook.Event{}, errors.New("No such event: " + eventID)
	}
	return ev, nil
}

func (p *fakeProvider) SubscriptionPeriodEnd(ctx context.Context, subscriptionID string) (time.Time, error) {
	p.subCalls++
	if p.subErr != nil {
		return time.Time{}, p.subErr
	}
	return p.periodEnds[subscriptionID], nil
}

type fakeStaff struct {
	assignments []membership.StaffAssignment
}

func (f *fakeStaff) GetAssignment(ctx context.Context, userID uuid.UUID) (membership.StaffAssignment, error) {
	for _, a := range f.assignments {
		if a.UserID == userID {
			return a, nil
		}
	}
	return membership.StaffAssignment{}, coteri_errors.ErrNotFound
}

func (f *fakeStaff) GetAssignmentAtVenue(ctx context.Context, userID, venueID uuid.UUID) (membership.StaffAssignment, error) {
	for _, a := range f.assignments {
		if a.UserID == userID && a.VenueID == venueID {
			return a, nil
		}
	}
	return membership.StaffAssignment{}, coteri_errors.ErrNotFound
}

type fakeVenues struct {
	venues map[uuid.UUID]membership.Venue
}

func (f *fakeVenues) GetByID(ctx context.Context, id uuid.UUID) (membership.Venue, error) {
	v, ok := f.venues[id]
	if !ok {
		return membership.Venue{}, coteri_errors.ErrNotFound
	}
	return v, nil
}

type fakeCache struct {
	mu      sync.Mutex
	results map[uuid.UUID]verification.Result
}

func newFakeCache() *fakeCache {
	return &fakeCache{results: make(map[uuid.UUID]verification.Result)}
}

func (c *fakeCache) Put(ctx context.Context, staffUserID uuid.UUID, result verification.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[staffUserID] = result
	return nil
}

func (c *fakeCache) Take(ctx context.Context, staffUserID uuid.UUID) (*verification.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.results[staffUserID]
	if !ok {
		return nil, nil
	}
	delete(c.results, staffUserID)
	return &r, nil
}

type fakeFeed struct {
	mu    sync.Mutex
	items map[uuid.UUID][]verification.FeedItem
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{items: make(map[uuid.UUID][]verification.FeedItem)}
}

func (f *fakeFeed) PublishVerification(ctx context.Context, venueID uuid.UUID, item verification.FeedItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[venueID] = append(f.items[venueID], item)
	return nil
}
