package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kursadbilgin/booking-engine/internal/domain"
	"github.com/kursadbilgin/booking-engine/internal/provider"
	"github.com/kursadbilgin/booking-engine/internal/queue"
	"github.com/kursadbilgin/booking-engine/internal/repository"
)

// memNotifications implements repository.NotificationRepository in memory with
// the same claim semantics as the Gorm implementation, so retry-engine tests
// exercise the real state machine.
type memNotifications struct {
	mu    sync.Mutex
	items map[string]*domain.Notification
}

func newMemNotifications() *memNotifications {
	return &memNotifications{items: make(map[string]*domain.Notification)}
}

func (m *memNotifications) add(n domain.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := n
	m.items[n.ID] = &copied
}

func (m *memNotifications) get(id string) domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.items[id]
}

func (m *memNotifications) Create(_ context.Context, n *domain.Notification) error {
	m.add(*n)
	return nil
}

func (m *memNotifications) CreateBatch(_ context.Context, notifications []*domain.Notification) error {
	for _, n := range notifications {
		m.add(*n)
	}
	return nil
}

func (m *memNotifications) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: notification %s", domain.ErrNotFound, id)
	}
	copied := *n
	return &copied, nil
}

func (m *memNotifications) List(_ context.Context, params repository.NotificationListParams) ([]domain.Notification, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.items {
		if params.BookingID != nil && (n.BookingID == nil || *n.BookingID != *params.BookingID) {
			continue
		}
		if params.Status != nil && n.Status != *params.Status {
			continue
		}
		out = append(out, *n)
	}
	return out, int64(len(out)), nil
}

func (m *memNotifications) FindDue(_ context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []domain.Notification
	for _, n := range m.items {
		if n.Status == domain.NotificationPending && !n.ScheduledFor.After(now) {
			due = append(due, *n)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].Priority.Rank() != due[j].Priority.Rank() {
			return due[i].Priority.Rank() < due[j].Priority.Rank()
		}
		return due[i].ScheduledFor.Before(due[j].ScheduledFor)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *memNotifications) ClaimForSending(_ context.Context, id string) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: notification %s", domain.ErrNotFound, id)
	}
	if n.Status != domain.NotificationPending {
		return nil, nil
	}
	n.Status = domain.NotificationSending
	copied := *n
	return &copied, nil
}

func (m *memNotifications) MarkSent(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return fmt.Errorf("%w: notification %s", domain.ErrNotFound, id)
	}
	n.Status = domain.NotificationSent
	n.SentAt = &at
	return nil
}

func (m *memNotifications) MarkFailed(_ context.Context, id string, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return fmt.Errorf("%w: notification %s", domain.ErrNotFound, id)
	}
	n.Status = domain.NotificationFailed
	n.LastError = &lastError
	return nil
}

func (m *memNotifications) RescheduleForRetry(_ context.Context, id string, scheduledFor time.Time, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return fmt.Errorf("%w: notification %s", domain.ErrNotFound, id)
	}
	n.Status = domain.NotificationPending
	n.RetryCount++
	n.ScheduledFor = scheduledFor
	n.LastError = &lastError
	return nil
}

func (m *memNotifications) ReleaseClaim(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return fmt.Errorf("%w: notification %s", domain.ErrNotFound, id)
	}
	if n.Status != domain.NotificationSending {
		return fmt.Errorf("%w: notification %s is not claimed", domain.ErrConflict, id)
	}
	n.Status = domain.NotificationPending
	return nil
}

func (m *memNotifications) Cancel(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return fmt.Errorf("%w: notification %s", domain.ErrNotFound, id)
	}
	if n.Status != domain.NotificationPending {
		return fmt.Errorf("%w: notification %s is not pending", domain.ErrConflict, id)
	}
	n.Status = domain.NotificationCancelled
	return nil
}

func (m *memNotifications) CancelPendingForBooking(_ context.Context, bookingID string, types []domain.NotificationType) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cancelled int64
	for _, n := range m.items {
		if n.BookingID == nil || *n.BookingID != bookingID || n.Status != domain.NotificationPending {
			continue
		}
		if len(types) > 0 && !containsType(types, n.Type) {
			continue
		}
		n.Status = domain.NotificationCancelled
		cancelled++
	}
	return cancelled, nil
}

func containsType(types []domain.NotificationType, t domain.NotificationType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func (m *memNotifications) byStatus(status domain.NotificationStatus) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.items {
		if n.Status == status {
			out = append(out, *n)
		}
	}
	return out
}

type memAttempts struct {
	mu       sync.Mutex
	attempts []domain.DeliveryAttempt
}

func (m *memAttempts) Create(_ context.Context, a *domain.DeliveryAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, *a)
	return nil
}

func (m *memAttempts) GetByNotificationID(_ context.Context, notificationID string) ([]domain.DeliveryAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DeliveryAttempt
	for _, a := range m.attempts {
		if a.NotificationID == notificationID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAttempts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

type fakeProvider struct {
	mu     sync.Mutex
	sent   []domain.Notification
	sendFn func(ctx context.Context, n domain.Notification) (*provider.ProviderResponse, error)
}

func (f *fakeProvider) Send(ctx context.Context, n domain.Notification) (*provider.ProviderResponse, error) {
	f.mu.Lock()
	f.sent = append(f.sent, n)
	f.mu.Unlock()
	if f.sendFn == nil {
		return &provider.ProviderResponse{StatusCode: 200}, nil
	}
	return f.sendFn(ctx, n)
}

func (f *fakeProvider) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeRateLimiter struct {
	waitFn func(ctx context.Context, channel string) error
}

func (f *fakeRateLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

func (f *fakeRateLimiter) Wait(ctx context.Context, channel string) error {
	if f.waitFn == nil {
		return nil
	}
	return f.waitFn(ctx, channel)
}

type fakeBookingRepo struct {
	createIfSlotFreeFn func(ctx context.Context, b *domain.Booking, maxDaily *int) error
	getByIDFn          func(ctx context.Context, id string) (*domain.Booking, error)
	countActiveFn      func(ctx context.Context, serviceID string, date time.Time, excludeID string) (int64, error)
	findConflictingFn  func(ctx context.Context, serviceID string, date time.Time, slot domain.TimeOfDay, excludeID string) (*domain.Booking, error)
	confirmFn          func(ctx context.Context, id string, at time.Time) error
	moveToSlotIfFreeFn func(ctx context.Context, id string, date time.Time, slot domain.TimeOfDay, maxDaily *int, at time.Time) error
	cancelFn           func(ctx context.Context, id string, reason *string, at time.Time) error
	completeFn         func(ctx context.Context, id string, notes *string, at time.Time) error
	hardDeleteFn       func(ctx context.Context, id string) error
	listFn             func(ctx context.Context, params repository.BookingListParams) ([]domain.Booking, int64, error)
}

func (f *fakeBookingRepo) CreateIfSlotFree(ctx context.Context, b *domain.Booking, maxDaily *int) error {
	if f.createIfSlotFreeFn == nil {
		return nil
	}
	return f.createIfSlotFreeFn(ctx, b, maxDaily)
}

func (f *fakeBookingRepo) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	return f.getByIDFn(ctx, id)
}

func (f *fakeBookingRepo) CountActive(ctx context.Context, serviceID string, date time.Time, excludeID string) (int64, error) {
	if f.countActiveFn == nil {
		return 0, nil
	}
	return f.countActiveFn(ctx, serviceID, date, excludeID)
}

func (f *fakeBookingRepo) FindConflicting(ctx context.Context, serviceID string, date time.Time, slot domain.TimeOfDay, excludeID string) (*domain.Booking, error) {
	if f.findConflictingFn == nil {
		return nil, nil
	}
	return f.findConflictingFn(ctx, serviceID, date, slot, excludeID)
}

func (f *fakeBookingRepo) Confirm(ctx context.Context, id string, at time.Time) error {
	if f.confirmFn == nil {
		return nil
	}
	return f.confirmFn(ctx, id, at)
}

func (f *fakeBookingRepo) MoveToSlotIfFree(ctx context.Context, id string, date time.Time, slot domain.TimeOfDay, maxDaily *int, at time.Time) error {
	if f.moveToSlotIfFreeFn == nil {
		return nil
	}
	return f.moveToSlotIfFreeFn(ctx, id, date, slot, maxDaily, at)
}

func (f *fakeBookingRepo) Cancel(ctx context.Context, id string, reason *string, at time.Time) error {
	if f.cancelFn == nil {
		return nil
	}
	return f.cancelFn(ctx, id, reason, at)
}

func (f *fakeBookingRepo) Complete(ctx context.Context, id string, notes *string, at time.Time) error {
	if f.completeFn == nil {
		return nil
	}
	return f.completeFn(ctx, id, notes, at)
}

func (f *fakeBookingRepo) HardDelete(ctx context.Context, id string) error {
	if f.hardDeleteFn == nil {
		return nil
	}
	return f.hardDeleteFn(ctx, id)
}

func (f *fakeBookingRepo) List(ctx context.Context, params repository.BookingListParams) ([]domain.Booking, int64, error) {
	if f.listFn == nil {
		return nil, 0, nil
	}
	return f.listFn(ctx, params)
}

type fakeServiceSource struct {
	getFn func(ctx context.Context, id string) (*domain.Service, error)
}

func (f *fakeServiceSource) Get(ctx context.Context, id string) (*domain.Service, error) {
	return f.getFn(ctx, id)
}

type fakeServiceRepo struct {
	mu       sync.Mutex
	getCalls int
	getFn    func(ctx context.Context, id string) (*domain.Service, error)
}

func (f *fakeServiceRepo) Create(context.Context, *domain.Service) error { return nil }
func (f *fakeServiceRepo) Update(context.Context, *domain.Service) error { return nil }

func (f *fakeServiceRepo) GetByID(ctx context.Context, id string) (*domain.Service, error) {
	f.mu.Lock()
	f.getCalls++
	f.mu.Unlock()
	return f.getFn(ctx, id)
}

func (f *fakeServiceRepo) List(context.Context, bool) ([]domain.Service, error) {
	return nil, nil
}

func (f *fakeServiceRepo) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

type capturedEvent struct {
	routingKey string
	message    queue.BookingEventMessage
}

type fakePublisher struct {
	mu        sync.Mutex
	published []capturedEvent
	publishFn func(ctx context.Context, routingKey string, msg queue.BookingEventMessage) error
}

func (f *fakePublisher) Publish(ctx context.Context, routingKey string, msg queue.BookingEventMessage) error {
	f.mu.Lock()
	f.published = append(f.published, capturedEvent{routingKey: routingKey, message: msg})
	f.mu.Unlock()
	if f.publishFn == nil {
		return nil
	}
	return f.publishFn(ctx, routingKey, msg)
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) events() []capturedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]capturedEvent, len(f.published))
	copy(out, f.published)
	return out
}
