package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"storefront-payments/internal/apperr"
	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"
	"sync"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type refundCall struct {
	pspReference   string
	idempotencyKey string
	req            *model.ReversalRequest
}

type mockCheckoutClient struct {
	CreateSessionFn  func(ctx context.Context, req *model.SessionRequest, idempotencyKey string) (*model.SessionResponse, error)
	RefundOrCancelFn func(ctx context.Context, pspReference string, req *model.ReversalRequest, idempotencyKey string) (*model.ReversalResponse, error)

	mu          sync.Mutex
	sessionKeys []string
	refunds     []refundCall
}

func (m *mockCheckoutClient) CreateSession(ctx context.Context, req *model.SessionRequest, idempotencyKey string) (*model.SessionResponse, error) {
	m.mu.Lock()
	m.sessionKeys = append(m.sessionKeys, idempotencyKey)
	m.mu.Unlock()

	if m.CreateSessionFn != nil {
		return m.CreateSessionFn(ctx, req, idempotencyKey)
	}

	return &model.SessionResponse{
		ID:          "CS" + idempotencyKey[len(idempotencyKey)-8:],
		SessionData: "Ab02b4c0!BQABAgA" + req.Reference,
		Amount:      req.Amount,
		CountryCode: req.CountryCode,
		ExpiresAt:   time.Now().Add(time.Hour),
		Reference:   req.Reference,
		ReturnURL:   req.ReturnURL,
	}, nil
}

func (m *mockCheckoutClient) RefundOrCancel(ctx context.Context, pspReference string, req *model.ReversalRequest, idempotencyKey string) (*model.ReversalResponse, error) {
	m.mu.Lock()
	m.refunds = append(m.refunds, refundCall{pspReference: pspReference, idempotencyKey: idempotencyKey, req: req})
	m.mu.Unlock()

	if m.RefundOrCancelFn != nil {
		return m.RefundOrCancelFn(ctx, pspReference, req, idempotencyKey)
	}

	return &model.ReversalResponse{
		PspReference:        "MOD" + pspReference,
		PaymentPspReference: pspReference,
		Reference:           req.Reference,
		Status:              "received",
	}, nil
}

func (m *mockCheckoutClient) sessionCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessionKeys)
}

func (m *mockCheckoutClient) refundCalls() []refundCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]refundCall(nil), m.refunds...)
}

type recordingPublisher struct {
	err error

	mu     sync.Mutex
	events []*model.OrderStatusEvent
}

func (p *recordingPublisher) PublishOrderStatusChanged(ctx context.Context, event *model.OrderStatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []*model.OrderStatusEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*model.OrderStatusEvent(nil), p.events...)
}

type mockLocker struct {
	granted bool
	err     error

	keys []string
	ttls []time.Duration
}

func (l *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	l.ttls = append(l.ttls, ttl)
	return l.granted, l.err
}

// failingCleanupSessions stores sessions normally but cannot delete them.
type failingCleanupSessions struct {
	repository.SessionRepository
}

var errSessionCleanup = errors.New("database is locked")

func (failingCleanupSessions) DeleteForUser(ctx context.Context, userID, keepSessionID string) (int64, error) {
	return 0, apperr.Persistence("delete sessions for user", errSessionCleanup)
}

func (failingCleanupSessions) DeleteForOrder(ctx context.Context, orderID, keepSessionID string) (int64, error) {
	return 0, apperr.Persistence("delete sessions for order", errSessionCleanup)
}
