package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"storefront-payments/internal/apperr"
	"storefront-payments/internal/model"
	"time"

	"gorm.io/gorm"
)

// SessionRepository is the durable store for provider checkout sessions.
// Rows are insert-only; readers pick the newest live row, and the Delete*
// methods trim duplicates. Errors are *apperr.Error (NotFound or Persistence).
type SessionRepository interface {
	Put(ctx context.Context, userID, orderID string, session *model.SessionResponse) (*model.CheckoutSession, error)
	GetByOrder(ctx context.Context, orderID, userID string) (*model.CheckoutSession, error)
	GetBySession(ctx context.Context, sessionID, userID string) (*model.CheckoutSession, error)
	DeleteBySession(ctx context.Context, sessionID string) error
	DeleteExpired(ctx context.Context) (int64, error)
	// DeleteForUser removes all of userID's sessions except keepSessionID ("" keeps none).
	DeleteForUser(ctx context.Context, userID, keepSessionID string) (int64, error)
	// DeleteForOrder removes all of orderID's sessions except keepSessionID ("" keeps none).
	DeleteForOrder(ctx context.Context, orderID, keepSessionID string) (int64, error)
}

type sessionRepoImpl struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewSessionRepository(db *gorm.DB, logger *slog.Logger) SessionRepository {
	return &sessionRepoImpl{
		db:     db,
		logger: logger.With("component", "session_store"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *sessionRepoImpl) Put(ctx context.Context, userID, orderID string, session *model.SessionResponse) (*model.CheckoutSession, error) {
	row := &model.CheckoutSession{
		SessionID:   session.ID,
		OrderID:     orderID,
		UserID:      userID,
		SessionData: session.SessionData,
		Amount:      session.Amount.Value,
		Currency:    session.Amount.Currency,
		CountryCode: session.CountryCode,
		ExpiresAt:   session.ExpiresAt.UTC(), // sqlite compares timestamps as text
		Reference:   session.Reference,
		ReturnURL:   session.ReturnURL,
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		r.logger.Error("store checkout session failed",
			"order_id", orderID, "user_id", userID, "session_id", session.ID, "error", err)
		return nil, apperr.Persistence("store checkout session", err)
	}

	r.logger.Info("checkout session stored",
		"order_id", orderID,
		"user_id", userID,
		"session_id", session.ID,
		"expires_at", session.ExpiresAt,
		"session_data", previewPayload(session.SessionData),
	)
	return row, nil
}

func (r *sessionRepoImpl) GetByOrder(ctx context.Context, orderID, userID string) (*model.CheckoutSession, error) {
	var row model.CheckoutSession
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND user_id = ? AND expires_at > ?", orderID, userID, r.now()).
		Order("created_at DESC, id DESC").
		First(&row).Error

	if err != nil {
		return nil, r.lookupError(err, "order_id", orderID, "user_id", userID)
	}

	r.logger.Debug("checkout session loaded by order",
		"order_id", orderID, "user_id", userID, "session_id", row.SessionID)
	return &row, nil
}

func (r *sessionRepoImpl) GetBySession(ctx context.Context, sessionID, userID string) (*model.CheckoutSession, error) {
	var row model.CheckoutSession
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND user_id = ? AND expires_at > ?", sessionID, userID, r.now()).
		Order("created_at DESC, id DESC").
		First(&row).Error

	if err != nil {
		return nil, r.lookupError(err, "session_id", sessionID, "user_id", userID)
	}

	r.logger.Debug("checkout session loaded by id",
		"order_id", row.OrderID, "user_id", userID, "session_id", sessionID)
	return &row, nil
}

func (r *sessionRepoImpl) DeleteBySession(ctx context.Context, sessionID string) error {
	result := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&model.CheckoutSession{})

	if result.Error != nil {
		r.logger.Warn("delete checkout session failed", "session_id", sessionID, "error", result.Error)
		return apperr.Persistence("delete checkout session", result.Error)
	}

	r.logger.Info("checkout session deleted", "session_id", sessionID, "deleted", result.RowsAffected)
	return nil
}

func (r *sessionRepoImpl) DeleteExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", r.now()).
		Delete(&model.CheckoutSession{})

	if result.Error != nil {
		r.logger.Warn("delete expired checkout sessions failed", "error", result.Error)
		return 0, apperr.Persistence("delete expired checkout sessions", result.Error)
	}

	r.logger.Info("expired checkout sessions deleted", "deleted", result.RowsAffected)
	return result.RowsAffected, nil
}

func (r *sessionRepoImpl) DeleteForUser(ctx context.Context, userID, keepSessionID string) (int64, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if keepSessionID != "" {
		query = query.Where("session_id <> ?", keepSessionID)
	}

	result := query.Delete(&model.CheckoutSession{})
	if result.Error != nil {
		r.logger.Warn("delete user checkout sessions failed",
			"user_id", userID, "keep_session_id", keepSessionID, "error", result.Error)
		return 0, apperr.Persistence("delete user checkout sessions", result.Error)
	}

	r.logger.Info("user checkout sessions deleted",
		"user_id", userID, "keep_session_id", keepSessionID, "deleted", result.RowsAffected)
	return result.RowsAffected, nil
}

func (r *sessionRepoImpl) DeleteForOrder(ctx context.Context, orderID, keepSessionID string) (int64, error) {
	query := r.db.WithContext(ctx).Where("order_id = ?", orderID)
	if keepSessionID != "" {
		query = query.Where("session_id <> ?", keepSessionID)
	}

	result := query.Delete(&model.CheckoutSession{})
	if result.Error != nil {
		r.logger.Warn("delete order checkout sessions failed",
			"order_id", orderID, "keep_session_id", keepSessionID, "error", result.Error)
		return 0, apperr.Persistence("delete order checkout sessions", result.Error)
	}

	r.logger.Info("order checkout sessions deleted",
		"order_id", orderID, "keep_session_id", keepSessionID, "deleted", result.RowsAffected)
	return result.RowsAffected, nil
}

func (r *sessionRepoImpl) lookupError(err error, attrs ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.logger.Debug("checkout session not found", attrs...)
		return apperr.NotFound("checkout session not found")
	}

	r.logger.Error("load checkout session failed", append(attrs, "error", err)...)
	return apperr.Persistence("load checkout session", err)
}

// previewPayload describes a session payload without revealing it.
func previewPayload(data string) string {
	const prefixLen = 8
	prefix := data
	if len(prefix) > prefixLen {
		prefix = prefix[:prefixLen]
	}
	return fmt.Sprintf("len=%d prefix=%q", len(data), prefix)
}
