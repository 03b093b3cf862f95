package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/greenleaf/storefront-api/internal/dto"
	"github.com/greenleaf/storefront-api/internal/model"
	"github.com/greenleaf/storefront-api/internal/repository"
)

var ErrProductNotFound = errors.New("product not found")

const productCacheTTL = 60 * time.Second

// CategoryAll is the sentinel that bypasses the category filter.
const CategoryAll = "All"

// CatalogService serves the sellable items and categories. Filtering is a
// pure, restartable view over the catalog: no ranking, catalog order
// preserved, empty results are valid.
type CatalogService struct {
	productRepo repository.ProductRepository
	redisClient *redis.Client
}

func NewCatalogService(productRepo repository.ProductRepository, redisClient *redis.Client) *CatalogService {
	return &CatalogService{productRepo: productRepo, redisClient: redisClient}
}

func (s *CatalogService) List(ctx context.Context, req dto.ListProductsRequest) (*dto.ProductListResponse, error) {
	category := req.Category
	if category == CategoryAll {
		category = ""
	}
	products, err := s.productRepo.List(ctx, category, req.Query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	items := make([]dto.ProductResponse, 0, len(products))
	for _, p := range products {
		items = append(items, toProductResponse(&p))
	}
	return &dto.ProductListResponse{Products: items, Total: len(items)}, nil
}

func (s *CatalogService) GetByID(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	cacheKey := "product:" + id.String()

	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var resp dto.ProductResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				return &resp, nil
			}
		}
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	resp := toProductResponse(product)

	if s.redisClient != nil {
		if data, err := json.Marshal(resp); err == nil {
			s.redisClient.Set(ctx, cacheKey, data, productCacheTTL)
		}
	}
	return &resp, nil
}

func (s *CatalogService) Create(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	product := &model.Product{
		Name:        req.Name,
		Brand:       req.Brand,
		Price:       req.Price,
		ListPrice:   req.ListPrice,
		Category:    req.Category,
		Description: req.Description,
		Images:      req.Images,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	resp := toProductResponse(product)
	return &resp, nil
}

func (s *CatalogService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Brand != nil {
		product.Brand = *req.Brand
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.ListPrice != nil {
		product.ListPrice = *req.ListPrice
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Images != nil {
		product.Images = *req.Images
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	s.invalidateCache(ctx, id)
	resp := toProductResponse(product)
	return &resp, nil
}

func (s *CatalogService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.invalidateCache(ctx, id)
	return nil
}

// AddReview records the review and folds it into the product's aggregate
// rating and review count.
func (s *CatalogService) AddReview(ctx context.Context, productID, userID uuid.UUID, userName string, req dto.AddReviewRequest) error {
	review := &model.Review{
		ProductID: productID,
		UserID:    userID,
		UserName:  userName,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := s.productRepo.AddReview(ctx, review); err != nil {
		return fmt.Errorf("add review: %w", err)
	}
	s.invalidateCache(ctx, productID)
	return nil
}

func (s *CatalogService) ListReviews(ctx context.Context, productID uuid.UUID) ([]model.Review, error) {
	return s.productRepo.ListReviews(ctx, productID)
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]string, error) {
	return s.productRepo.ListCategories(ctx)
}

func (s *CatalogService) AddCategory(ctx context.Context, name string) error {
	return s.productRepo.AddCategory(ctx, name)
}

func (s *CatalogService) DeleteCategory(ctx context.Context, name string) error {
	return s.productRepo.DeleteCategory(ctx, name)
}

func (s *CatalogService) invalidateCache(ctx context.Context, id uuid.UUID) {
	if s.redisClient != nil {
		s.redisClient.Del(ctx, "product:"+id.String())
	}
}

func toProductResponse(p *model.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Brand:       p.Brand,
		Price:       p.Price,
		ListPrice:   p.ListPrice,
		Category:    p.Category,
		Description: p.Description,
		Images:      p.Images,
		Rating:      p.Rating,
		ReviewCount: p.ReviewCount,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
