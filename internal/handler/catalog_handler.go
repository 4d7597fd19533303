package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/agora/internal/model"
	"github.com/hitoshi/agora/internal/view"
)

// CatalogServiceInterface はカタログハンドラーが必要とするインターフェース。
// catalog.Catalogの部分集合として定義する。
type CatalogServiceInterface interface {
	List() []model.Product
	FindByID(id int) *model.Product
}

// CatalogHandler は商品カタログのHTTPハンドラー。
type CatalogHandler struct {
	catalog CatalogServiceInterface
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(catalog CatalogServiceInterface) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// productResponse は商品情報のAPIレスポンス。
type productResponse struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	ImageURL    string  `json:"image_url"`
	Rating      float64 `json:"rating"`
}

// ListProducts は商品一覧を返す。クエリパラメータqで絞り込む。
// GET /api/products?q=
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	products := view.FilteredProducts(h.catalog.List(), query)

	results := make([]productResponse, len(products))
	for i, p := range products {
		results[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, results)
}

// GetProduct は商品詳細を返す。
// GET /api/products/:id
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "商品IDは整数で指定してください。",
			Category: model.CategoryValidation,
			Action:   "商品IDを確認してください。",
		})
		return
	}

	product := h.catalog.FindByID(id)
	if product == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewProductNotFoundError(id))
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(*product))
}

// toProductResponse はmodel.ProductからAPIレスポンスに変換する。
func toProductResponse(p model.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		Rating:      p.Rating,
	}
}
