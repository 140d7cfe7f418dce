package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	domain "github.com/craftmarket/api/internal/domain"
	"github.com/craftmarket/api/internal/repositories"
)

const (
	cartProblemInvalidQuantity    = "invalid_quantity"
	cartProblemProductNotFound    = "product_not_found"
	cartProblemProductUnpublished = "product_unpublished"
	cartProblemInsufficientStock  = "insufficient_stock"
)

// ErrCartInvalidInput signals the caller provided invalid data.
var ErrCartInvalidInput = errors.New("cart: invalid input")

// CartValidatorDeps bundles collaborators required to construct the cart validator.
type CartValidatorDeps struct {
	Products repositories.ProductRepository
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type cartValidator struct {
	products repositories.ProductRepository
	logger   func(context.Context, string, map[string]any)
}

// NewCartValidator wires dependencies into a concrete CartValidator implementation.
func NewCartValidator(deps CartValidatorDeps) (CartValidator, error) {
	if deps.Products == nil {
		return nil, errors.New("cart validator: product repository is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartValidator{
		products: deps.Products,
		logger:   logger,
	}, nil
}

func (v *cartValidator) Validate(ctx context.Context, userID string, items []CartItem) (CartValidation, error) {
	if strings.TrimSpace(userID) == "" {
		return CartValidation{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	validation := CartValidation{
		Subtotal: decimal.Zero,
		Products: map[string]Product{},
	}

	if len(items) == 0 {
		validation.Problems = append(validation.Problems, CartProblem{
			Code:    "empty_cart",
			Message: "cart contains no items",
		})
		return validation, nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	products, err := v.products.FindByIDs(ctx, ids)
	if err != nil {
		return CartValidation{}, fmt.Errorf("cart validator: load products: %w", err)
	}

	for _, item := range items {
		if item.Quantity <= 0 {
			validation.Problems = append(validation.Problems, CartProblem{
				ProductID: item.ProductID,
				Code:      cartProblemInvalidQuantity,
				Message:   fmt.Sprintf("quantity must be positive, got %d", item.Quantity),
				Requested: item.Quantity,
			})
			continue
		}

		product, ok := products[item.ProductID]
		if !ok {
			validation.Problems = append(validation.Problems, CartProblem{
				ProductID: item.ProductID,
				Code:      cartProblemProductNotFound,
				Message:   "product no longer exists",
				Requested: item.Quantity,
			})
			continue
		}
		if product.Status != domain.ProductStatusPublished {
			validation.Problems = append(validation.Problems, CartProblem{
				ProductID: item.ProductID,
				Code:      cartProblemProductUnpublished,
				Message:   fmt.Sprintf("product is %s", product.Status),
				Requested: item.Quantity,
			})
			continue
		}
		if product.Quantity < item.Quantity {
			validation.Problems = append(validation.Problems, CartProblem{
				ProductID: item.ProductID,
				Code:      cartProblemInsufficientStock,
				Message:   fmt.Sprintf("requested %d, available %d", item.Quantity, product.Quantity),
				Requested: item.Quantity,
				Available: product.Quantity,
			})
			continue
		}

		validation.Products[product.ID] = product
		validation.Subtotal = validation.Subtotal.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	validation.Valid = len(validation.Problems) == 0
	if !validation.Valid {
		v.logger(ctx, "cart.validation.failed", map[string]any{
			"user":     userID,
			"problems": len(validation.Problems),
		})
	}
	return validation, nil
}
