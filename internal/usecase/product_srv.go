package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/data/entity"
	"storefront/internal/data/repository"
	"storefront/internal/dto/request"
	"storefront/internal/dto/response"
	"storefront/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductService interface {
	ListProducts(ctx context.Context, req *request.ProductFilterRequest) (*response.PaginatedResponse[response.ProductResponse], error)
	GetProduct(ctx context.Context, id uuid.UUID) (*response.ProductResponse, error)
	CreateProduct(ctx context.Context, req *request.ProductRequest) (*response.ProductResponse, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, req *request.ProductUpdateRequest) (*response.ProductResponse, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type productService struct {
	repo    repository.ProductRepository
	timeout time.Duration
	now     func() time.Time
	log     *zap.Logger
}

func NewProductService(repo repository.ProductRepository, config *utils.Config, log *zap.Logger) ProductService {
	return &productService{
		repo:    repo,
		timeout: config.Database.QueryTimeout,
		now:     time.Now,
		log:     log.With(zap.String("service", "product")),
	}
}

func (s *productService) ListProducts(ctx context.Context, req *request.ProductFilterRequest) (*response.PaginatedResponse[response.ProductResponse], error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, ValidationError("validation failed", errs)
	}
	if req.MinPrice != nil && req.MaxPrice != nil && *req.MinPrice > *req.MaxPrice {
		return nil, ValidationError("validation failed", map[string]string{
			"minPrice": "must not exceed maxPrice",
		})
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	filter := repository.ProductFilter{
		Keyword:   req.Keyword,
		Category:  req.Category,
		MinPrice:  req.MinPrice,
		MaxPrice:  req.MaxPrice,
		MinRating: req.MinRating,
		SortBy:    req.SortBy,
	}

	total, err := s.repo.CountAll(ctx, filter)
	if err != nil {
		return nil, StoreUnavailable(err)
	}

	limit := req.PerPage()
	pages := utils.CalculateTotalPages(total, limit)
	if total > 0 && req.Page > pages {
		return nil, ValidationError(fmt.Sprintf("page %d does not exist, total %d pages", req.Page, pages), nil)
	}

	products, err := s.repo.FindAll(ctx, filter, req.Offset(), limit)
	if err != nil {
		return nil, StoreUnavailable(err)
	}

	return response.NewPaginatedResponse(response.ProductsToResponse(products), req.Page, limit, total), nil
}

func (s *productService) GetProduct(ctx context.Context, id uuid.UUID) (*response.ProductResponse, error) {
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, StoreUnavailable(err)
	}
	if product == nil {
		return nil, NotFoundError("product not found")
	}

	resp := response.ProductToResponse(product)
	return &resp, nil
}

func (s *productService) CreateProduct(ctx context.Context, req *request.ProductRequest) (*response.ProductResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, ValidationError("validation failed", errs)
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now()
	product := &entity.Product{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       decimal.NewFromFloat(req.Price).Round(2),
		Image:       req.Image,
		Category:    req.Category,
		Stock:       req.Stock,
	}
	if req.Rating != nil {
		product.Rating = *req.Rating
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, StoreUnavailable(err)
	}

	s.log.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("name", product.Name),
	)

	resp := response.ProductToResponse(product)
	return &resp, nil
}

func (s *productService) UpdateProduct(ctx context.Context, id uuid.UUID, req *request.ProductUpdateRequest) (*response.ProductResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, ValidationError("validation failed", errs)
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, StoreUnavailable(err)
	}
	if product == nil {
		return nil, NotFoundError("product not found")
	}

	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		product.Description = req.Description
	}
	if req.Price != nil {
		product.Price = decimal.NewFromFloat(*req.Price).Round(2)
	}
	if req.Image != nil {
		product.Image = req.Image
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.Rating != nil {
		product.Rating = *req.Rating
	}
	product.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, product); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFoundError("product not found")
		}
		return nil, StoreUnavailable(err)
	}

	s.log.Info("Product updated", zap.String("product_id", id.String()))

	resp := response.ProductToResponse(product)
	return &resp, nil
}

func (s *productService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NotFoundError("product not found")
		}
		return StoreUnavailable(err)
	}

	s.log.Info("Product deleted", zap.String("product_id", id.String()))
	return nil
}
