package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenleaf/storefront-api/internal/dto"
	"github.com/greenleaf/storefront-api/internal/model"
)

type mockProductRepo struct {
	products   map[uuid.UUID]*model.Product
	reviews    map[uuid.UUID][]model.Review
	categories []string
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{products: make(map[uuid.UUID]*model.Product), reviews: make(map[uuid.UUID][]model.Review)}
}

func (m *mockProductRepo) Create(_ context.Context, p *model.Product) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.products[p.ID] = p
	return nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	return m.products[id], nil
}

func (m *mockProductRepo) List(_ context.Context, category, query string) ([]model.Product, error) {
	var out []model.Product
	for _, p := range m.products {
		if category != "" && p.Category != category {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockProductRepo) Update(_ context.Context, p *model.Product) error {
	m.products[p.ID] = p
	return nil
}

func (m *mockProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.products, id)
	return nil
}

func (m *mockProductRepo) AddReview(_ context.Context, review *model.Review) error {
	review.ID = uuid.New()
	m.reviews[review.ProductID] = append(m.reviews[review.ProductID], *review)
	if p, ok := m.products[review.ProductID]; ok {
		sum := p.Rating.Mul(decimal.NewFromInt(int64(p.ReviewCount))).Add(decimal.NewFromInt(int64(review.Rating)))
		p.ReviewCount++
		p.Rating = sum.Div(decimal.NewFromInt(int64(p.ReviewCount)))
	}
	return nil
}

func (m *mockProductRepo) ListReviews(_ context.Context, productID uuid.UUID) ([]model.Review, error) {
	return m.reviews[productID], nil
}

func (m *mockProductRepo) ListCategories(_ context.Context) ([]string, error) {
	return m.categories, nil
}

func (m *mockProductRepo) AddCategory(_ context.Context, name string) error {
	m.categories = append(m.categories, name)
	return nil
}

func (m *mockProductRepo) DeleteCategory(_ context.Context, name string) error {
	for i, c := range m.categories {
		if c == name {
			m.categories = append(m.categories[:i], m.categories[i+1:]...)
			break
		}
	}
	return nil
}

func TestCatalogService_Create(t *testing.T) {
	svc := NewCatalogService(newMockProductRepo(), nil)
	resp, err := svc.Create(context.Background(), dto.CreateProductRequest{
		Name: "Tulsi Tea", Brand: "Green Leaf", Price: decimal.NewFromFloat(7.50), Category: "Teas",
	})
	require.NoError(t, err)
	assert.Equal(t, "Tulsi Tea", resp.Name)
	assert.Equal(t, "Teas", resp.Category)
}

func TestCatalogService_GetByID_NotFound(t *testing.T) {
	svc := NewCatalogService(newMockProductRepo(), nil)
	_, err := svc.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCatalogService_List_AllBypassesCategoryFilter(t *testing.T) {
	repo := newMockProductRepo()
	for _, cat := range []string{"Teas", "Oils", "Teas"} {
		_ = repo.Create(context.Background(), &model.Product{Name: "P", Category: cat})
	}
	svc := NewCatalogService(repo, nil)

	resp, err := svc.List(context.Background(), dto.ListProductsRequest{Category: CategoryAll})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Total)

	resp, err = svc.List(context.Background(), dto.ListProductsRequest{Category: "Teas"})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
}

func TestCatalogService_List_QueryNoMatchesIsValid(t *testing.T) {
	repo := newMockProductRepo()
	_ = repo.Create(context.Background(), &model.Product{Name: "Neem Oil", Category: "Oils"})
	svc := NewCatalogService(repo, nil)

	resp, err := svc.List(context.Background(), dto.ListProductsRequest{Query: "turmeric"})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Total)
	assert.NotNil(t, resp.Products)
}

func TestCatalogService_Update_NotFound(t *testing.T) {
	svc := NewCatalogService(newMockProductRepo(), nil)
	name := "Renamed"
	_, err := svc.Update(context.Background(), uuid.New(), dto.UpdateProductRequest{Name: &name})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCatalogService_AddReview_FoldsIntoAggregateRating(t *testing.T) {
	repo := newMockProductRepo()
	product := &model.Product{Name: "Brahmi Powder"}
	require.NoError(t, repo.Create(context.Background(), product))
	svc := NewCatalogService(repo, nil)

	require.NoError(t, svc.AddReview(context.Background(), product.ID, uuid.New(), "Asha", dto.AddReviewRequest{Rating: 5, Comment: "great"}))
	require.NoError(t, svc.AddReview(context.Background(), product.ID, uuid.New(), "Ravi", dto.AddReviewRequest{Rating: 3, Comment: "ok"}))

	p := repo.products[product.ID]
	assert.Equal(t, 2, p.ReviewCount)
	assert.True(t, p.Rating.Equal(decimal.NewFromInt(4)), "rating = %s", p.Rating)

	reviews, err := svc.ListReviews(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Len(t, reviews, 2)
}
