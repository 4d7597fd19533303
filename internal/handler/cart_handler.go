package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/agora/internal/model"
	"github.com/hitoshi/agora/internal/view"
)

// CartServiceInterface はカートハンドラーが必要とするストアインターフェース。
// store.Storeの部分集合として定義する。
type CartServiceInterface interface {
	Cart() []model.CartLine
	AddToCart(ctx context.Context, productID int) error
	SetQuantity(ctx context.Context, productID, qty int) error
	RemoveFromCart(ctx context.Context, productID int)
	ClearCart(ctx context.Context)
	Checkout(ctx context.Context) (float64, []model.CartLine, error)
	RestoreCart(ctx context.Context, lines []model.CartLine)
}

// OptimisticExecutor は楽観的更新の実行インターフェース。
// optimistic.Coordinatorの部分集合として定義する。
type OptimisticExecutor interface {
	Execute(ctx context.Context, operation string, apply func() error, revert func()) error
}

// CartHandler はショッピングカートのHTTPハンドラー。
type CartHandler struct {
	service    CartServiceInterface
	catalog    CatalogServiceInterface
	optimistic OptimisticExecutor
	metrics    CommandMetrics
}

// NewCartHandler はCartHandlerを生成する。
func NewCartHandler(service CartServiceInterface, catalog CatalogServiceInterface, optimistic OptimisticExecutor, metrics CommandMetrics) *CartHandler {
	return &CartHandler{
		service:    service,
		catalog:    catalog,
		optimistic: optimistic,
		metrics:    metrics,
	}
}

// addCartItemRequest はカート追加リクエストのボディ。
type addCartItemRequest struct {
	ProductID int `json:"product_id"`
}

// updateCartItemRequest は数量変更リクエストのボディ。
type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// cartLineResponse はカート行のAPIレスポンス。
type cartLineResponse struct {
	Product   productResponse `json:"product"`
	Quantity  int             `json:"quantity"`
	LineTotal float64         `json:"line_total"`
}

// cartResponse はカート全体のAPIレスポンス。
type cartResponse struct {
	Lines []cartLineResponse `json:"lines"`
	Total float64            `json:"total"`
}

// checkoutResponse はチェックアウト結果のAPIレスポンス。
type checkoutResponse struct {
	Total float64 `json:"total"`
}

// GetCart は現在のカート内容を集計して返す。
// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cartResponse())
}

// AddItem は商品をカートに追加する。既存行は数量を1増やす。
// POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	recordCommand(h.metrics, "add_to_cart")
	if err := h.service.AddToCart(r.Context(), req.ProductID); err != nil {
		recordFailure(h.metrics, "add_to_cart", err)
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.cartResponse())
}

// UpdateItem はカート行の数量を変更する。数量0以下は行の削除として扱う。
// PUT /api/cart/items/:productID
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.Atoi(chi.URLParam(r, "productID"))
	if err != nil {
		writeInvalidRequest(w)
		return
	}

	var req updateCartItemRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	recordCommand(h.metrics, "set_quantity")
	if err := h.service.SetQuantity(r.Context(), productID, req.Quantity); err != nil {
		recordFailure(h.metrics, "set_quantity", err)
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.cartResponse())
}

// RemoveItem はカートから行を削除する。存在しない行の削除は冪等に成功する。
// DELETE /api/cart/items/:productID
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.Atoi(chi.URLParam(r, "productID"))
	if err != nil {
		writeInvalidRequest(w)
		return
	}

	recordCommand(h.metrics, "remove_from_cart")
	h.service.RemoveFromCart(r.Context(), productID)

	w.WriteHeader(http.StatusNoContent)
}

// ClearCart はカートを空にする。
// DELETE /api/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	recordCommand(h.metrics, "clear_cart")
	h.service.ClearCart(r.Context())

	w.WriteHeader(http.StatusNoContent)
}

// Checkout はカート内容を確定して空にする。
// バックエンド確定が失敗した場合は元のカート内容を復元する。
// POST /api/checkout
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var total float64
	var cleared []model.CartLine

	apply := func() error {
		var err error
		total, cleared, err = h.service.Checkout(r.Context())
		return err
	}
	revert := func() {
		h.service.RestoreCart(context.Background(), cleared)
	}

	recordCommand(h.metrics, "checkout")
	if err := h.optimistic.Execute(r.Context(), "checkout", apply, revert); err != nil {
		recordFailure(h.metrics, "checkout", err)
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{Total: total})
}

// cartResponse は現在のカートを集計したレスポンスを構築する。
func (h *CartHandler) cartResponse() cartResponse {
	summary := view.CartSummary(h.catalog.List(), h.service.Cart())

	lines := make([]cartLineResponse, len(summary.Lines))
	for i, line := range summary.Lines {
		lines[i] = cartLineResponse{
			Product:   toProductResponse(line.Product),
			Quantity:  line.Quantity,
			LineTotal: line.LineTotal,
		}
	}
	return cartResponse{Lines: lines, Total: summary.Total}
}
