package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
)

type CatalogService interface {
	CreateProduct(ctx context.Context, role models.Role, p store.CreateProductParams) (*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, categoryID int64, page, pageSize int) (*store.OffsetPage[models.Product], error)
	SetStock(ctx context.Context, role models.Role, productID int64, quantity, version int) (*models.Product, error)
	SetPrice(ctx context.Context, role models.Role, productID int64, price decimal.Decimal) (*models.Product, error)
	ApplyDiscount(ctx context.Context, role models.Role, productIDs []int64, percentage decimal.Decimal) ([]models.Product, error)
	CreateCategory(ctx context.Context, role models.Role, name string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	AddToWishlist(ctx context.Context, userID, productID int64) (*models.WishlistItem, error)
	Wishlist(ctx context.Context, userID int64) ([]models.WishlistItem, error)
	RemoveFromWishlist(ctx context.Context, userID, productID int64) error
}

type CatalogHandlers struct {
	catalog CatalogService
}

func NewCatalogHandlers(svc CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: svc}
}

func (h *CatalogHandlers) ProductRoutes(r chi.Router) {
	r.Get("/", h.listProducts)
	r.Get("/{productId}", h.getProduct)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(models.RoleProductManager))
		r.Post("/", h.createProduct)
		r.Put("/{productId}/quantity", h.setStock)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(models.RoleSalesManager))
		r.Put("/{productId}/price", h.setPrice)
		r.Post("/discount", h.applyDiscount)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles())
		r.Get("/wishlist", h.wishlist)
		r.Post("/{productId}/wishlist", h.addToWishlist)
		r.Delete("/{productId}/wishlist", h.removeFromWishlist)
	})
}

func (h *CatalogHandlers) CategoryRoutes(r chi.Router) {
	r.Get("/", h.listCategories)
	r.With(auth.RequireRoles(models.RoleProductManager)).Post("/", h.createCategory)
}

func roleOf(r *http.Request) models.Role {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return identity.Role
	}
	return ""
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	page, err := h.catalog.ListProducts(r.Context(),
		int64(queryInt(r, "category_id", 0)),
		queryInt(r, "page", 1),
		queryInt(r, "page_size", 0))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "productId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

type createProductRequest struct {
	CategoryID     int64                 `json:"category_id"`
	Name           string                `json:"name"`
	Model          string                `json:"model"`
	SerialNumber   string                `json:"serial_number"`
	Description    string                `json:"description"`
	Quantity       int                   `json:"quantity"`
	Price          decimal.Decimal       `json:"price"`
	Distributor    string                `json:"distributor"`
	WarrantyStatus models.WarrantyStatus `json:"warranty_status"`
	ImageURL       string                `json:"image_url"`
}

func (h *CatalogHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	product, err := h.catalog.CreateProduct(r.Context(), roleOf(r), store.CreateProductParams{
		CategoryID:     req.CategoryID,
		Name:           req.Name,
		Model:          req.Model,
		SerialNumber:   req.SerialNumber,
		Description:    req.Description,
		Quantity:       req.Quantity,
		Price:          req.Price,
		Distributor:    req.Distributor,
		WarrantyStatus: req.WarrantyStatus,
		ImageURL:       req.ImageURL,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, product)
}

type stockRequest struct {
	Quantity int `json:"quantity"`
	Version  int `json:"version"`
}

func (h *CatalogHandlers) setStock(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "productId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var req stockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	product, err := h.catalog.SetStock(r.Context(), roleOf(r), id, req.Quantity, req.Version)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

type priceRequest struct {
	Price decimal.Decimal `json:"price"`
}

func (h *CatalogHandlers) setPrice(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "productId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var req priceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	product, err := h.catalog.SetPrice(r.Context(), roleOf(r), id, req.Price)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

type discountRequest struct {
	ProductIDs []int64         `json:"product_ids"`
	Percentage decimal.Decimal `json:"percentage"`
}

func (h *CatalogHandlers) applyDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if len(req.ProductIDs) == 0 {
		badRequest(w, "product_ids must not be empty")
		return
	}

	products, err := h.catalog.ApplyDiscount(r.Context(), roleOf(r), req.ProductIDs, req.Percentage)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(products))
}

func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(categories))
}

type categoryRequest struct {
	Name string `json:"name"`
}

func (h *CatalogHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	category, err := h.catalog.CreateCategory(r.Context(), roleOf(r), req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, category)
}

func (h *CatalogHandlers) wishlist(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	items, err := h.catalog.Wishlist(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(items))
}

func (h *CatalogHandlers) addToWishlist(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "productId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	identity, _ := auth.IdentityFromContext(r.Context())
	item, err := h.catalog.AddToWishlist(r.Context(), identity.UserID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

func (h *CatalogHandlers) removeFromWishlist(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "productId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	identity, _ := auth.IdentityFromContext(r.Context())
	if err := h.catalog.RemoveFromWishlist(r.Context(), identity.UserID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
