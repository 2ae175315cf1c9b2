package service

import (
	"context"
	"errors"
	"fmt"
	"storefront-payments/internal/apperr"
	"storefront-payments/internal/dto"
	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"

	"gorm.io/gorm"
)

type CartService interface {
	GetCart(ctx context.Context, userID string) (*dto.CartResponse, error)
	AddItem(ctx context.Context, userID string, item *dto.Item) (*dto.CartResponse, error)
}

type cartServiceImpl struct {
	productRepo repository.ProductRepository
	cartRepo    repository.CartRepository
	currency    string
}

func NewCartService(
	productRepo repository.ProductRepository,
	cartRepo repository.CartRepository,
	currency string,
) CartService {
	return &cartServiceImpl{
		productRepo: productRepo,
		cartRepo:    cartRepo,
		currency:    currency,
	}
}

func (s *cartServiceImpl) GetCart(ctx context.Context, userID string) (*dto.CartResponse, error) {
	lines, err := loadCartLines(ctx, nil, s.cartRepo, s.productRepo, userID)
	if err != nil {
		return nil, err
	}

	totals := ComputeTotals(lines)
	resp := &dto.CartResponse{
		Items:    make([]*dto.CartLine, len(lines)),
		Subtotal: totals.Subtotal,
		Tax:      totals.Tax,
		Total:    totals.Total,
		Currency: s.currency,
	}
	for i, line := range lines {
		resp.Items[i] = &dto.CartLine{
			Sku:       line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		}
	}

	return resp, nil
}

func (s *cartServiceImpl) AddItem(ctx context.Context, userID string, item *dto.Item) (*dto.CartResponse, error) {
	if item.Sku == "" {
		return nil, apperr.Validation("sku is required")
	}
	if item.Quantity <= 0 {
		return nil, apperr.Validation("item quantity must be positive")
	}

	products, err := s.productRepo.FindMany(ctx, nil, []string{item.Sku})
	if err != nil {
		return nil, apperr.Persistence("find product", err)
	}
	if len(products) == 0 {
		return nil, apperr.NotFound(fmt.Sprintf("product %s not found", item.Sku))
	}

	err = s.cartRepo.AddItem(ctx, &model.CartItem{
		UserID:    userID,
		ProductID: item.Sku,
		Quantity:  item.Quantity,
	})
	if err != nil {
		return nil, apperr.Persistence("add cart item", err)
	}

	return s.GetCart(ctx, userID)
}

// loadCartLines prices userID's cart against the current catalog.
func loadCartLines(
	ctx context.Context,
	tx *gorm.DB,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	userID string,
) ([]model.CartLine, error) {
	items, err := cartRepo.GetItems(ctx, tx, userID)
	if err != nil {
		return nil, apperr.Persistence("get cart items", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	productIDs := make([]string, len(items))
	for i, item := range items {
		productIDs[i] = item.ProductID
	}

	products, err := productRepo.FindMany(ctx, tx, productIDs)
	if err != nil {
		return nil, apperr.Persistence("get cart products", err)
	}

	byID := make(map[string]*model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]model.CartLine, 0, len(items))
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, apperr.Validation(fmt.Sprintf("product %s is no longer available", item.ProductID))
		}
		lines = append(lines, model.CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		})
	}

	return lines, nil
}

// storeError classifies a repository error for an operation on a single record.
func storeError(err error, notFoundMsg, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(notFoundMsg)
	}
	return apperr.Persistence(op, err)
}
