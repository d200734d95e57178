package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/orders"
	"github.com/safar/go-storefront/internal/store"
)

// OrderService is the order lifecycle engine behind the purchase endpoints.
type OrderService interface {
	MakePurchase(ctx context.Context, actor orders.Actor, productID int64, quantity int) (uuid.UUID, error)
	Checkout(ctx context.Context, actor orders.Actor, req orders.CheckoutRequest) (uuid.UUID, error)
	Cancel(ctx context.Context, actor orders.Actor, orderID uuid.UUID) error
	RequestRefund(ctx context.Context, actor orders.Actor, orderID uuid.UUID) error
	ApproveRefund(ctx context.Context, actor orders.Actor, orderID uuid.UUID) error
	ForceOrderStatus(ctx context.Context, actor orders.Actor, orderID uuid.UUID, status int) ([]models.Delivery, error)
	ForceDeliveryStatus(ctx context.Context, actor orders.Actor, deliveryID int64, status int) (*models.Delivery, error)
	RevenueReport(ctx context.Context, actor orders.Actor, from, to time.Time) (*models.RevenueReport, error)
	RefundRequestedOrders(ctx context.Context, actor orders.Actor) ([]uuid.UUID, error)
	PurchasesByDateRange(ctx context.Context, actor orders.Actor, from, to time.Time) ([]models.PurchaseDetails, error)
	AllPurchases(ctx context.Context, actor orders.Actor) ([]models.PurchaseDetails, error)
	MyPurchases(ctx context.Context, actor orders.Actor, cursor string, limit int) (*store.CursorPage[models.PurchaseDetails], error)
	MyOrders(ctx context.Context, actor orders.Actor) ([]uuid.UUID, error)
	AllOrders(ctx context.Context, actor orders.Actor) ([]uuid.UUID, error)
	OrderDetails(ctx context.Context, actor orders.Actor, orderID uuid.UUID) ([]models.PurchaseDetails, error)
	InvoiceByOrder(ctx context.Context, actor orders.Actor, req orders.InvoiceRequest) ([]byte, error)
}

type PurchaseHandlers struct {
	orders OrderService
}

func NewPurchaseHandlers(svc OrderService) *PurchaseHandlers {
	return &PurchaseHandlers{orders: svc}
}

// Routes registers the purchase endpoints. Every route requires a signed-in user; staff-only
// routes are also gated by role here, and the engine re-checks roles itself.
func (h *PurchaseHandlers) Routes(r chi.Router) {
	r.Use(auth.RequireRoles())

	r.Post("/products/{productId}/purchase", h.purchase)
	r.Post("/checkout", h.checkout)
	r.Put("/cancel/{orderId}", h.cancel)
	r.Put("/refund/{orderId}", h.requestRefund)
	r.Get("/me", h.myPurchases)
	r.Get("/orders", h.myOrders)
	r.Get("/orders/{orderId}", h.orderDetails)
	r.Post("/invoice/by-order", h.invoiceByOrder)

	r.With(auth.RequireRoles(models.RoleSalesManager, models.RoleProductManager)).Get("/", h.allPurchases)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(models.RoleSalesManager))
		r.Put("/refund/approve/{orderId}", h.approveRefund)
		r.Get("/revenue", h.revenue)
		r.Get("/range", h.purchasesByDateRange)
		r.Get("/refund-requests", h.refundRequests)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRoles(models.RoleProductManager))
		r.Get("/orders/all", h.allOrders)
		r.Put("/orders/{orderId}/status/{status}", h.forceOrderStatus)
		r.Put("/deliveries/{deliveryId}/status/{status}", h.forceDeliveryStatus)
	})
}

type orderResponse struct {
	OrderID uuid.UUID `json:"order_id"`
}

// orderFailure keeps the order_id field on failed placements so clients always read one; it is
// the nil UUID.
type orderFailure struct {
	errorResponse
	OrderID uuid.UUID `json:"order_id"`
}

type orderActionResponse struct {
	OrderID uuid.UUID `json:"order_id"`
	Message string    `json:"message"`
}

func writeOrderFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		writeClassified(w, r, err, status, code)
		return
	}
	if status == http.StatusNotFound || status == http.StatusConflict {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, orderFailure{
		errorResponse: errorResponse{Error: code, Message: err.Error()},
		OrderID:       uuid.Nil,
	})
}

func invalidOrder(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, orderFailure{
		errorResponse: errorResponse{Error: "invalid_request", Message: message},
		OrderID:       uuid.Nil,
	})
}

type purchaseRequest struct {
	Quantity int `json:"quantity"`
}

func (h *PurchaseHandlers) purchase(w http.ResponseWriter, r *http.Request) {
	productID, err := int64Param(r, "productId")
	if err != nil {
		invalidOrder(w, err.Error())
		return
	}

	var req purchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		invalidOrder(w, err.Error())
		return
	}

	orderID, err := h.orders.MakePurchase(r.Context(), actorFrom(r), productID, req.Quantity)
	if err != nil {
		writeOrderFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, orderResponse{OrderID: orderID})
}

type checkoutRequest struct {
	Items           []orders.CheckoutItem `json:"items"`
	DeliveryAddress string                `json:"deliveryAddress"`
	FirstName       string                `json:"firstName"`
	LastName        string                `json:"lastName"`
}

func (h *PurchaseHandlers) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		invalidOrder(w, err.Error())
		return
	}

	orderID, err := h.orders.Checkout(r.Context(), actorFrom(r), orders.CheckoutRequest{
		Items:           req.Items,
		DeliveryAddress: req.DeliveryAddress,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
	})
	if err != nil {
		writeOrderFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, orderResponse{OrderID: orderID})
}

func (h *PurchaseHandlers) cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "orderId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.orders.Cancel(r.Context(), actorFrom(r), orderID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, orderActionResponse{OrderID: orderID, Message: "order cancelled"})
}

func (h *PurchaseHandlers) requestRefund(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "orderId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.orders.RequestRefund(r.Context(), actorFrom(r), orderID); err != nil {
		writeClientError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, orderActionResponse{OrderID: orderID, Message: "refund requested"})
}

func (h *PurchaseHandlers) approveRefund(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "orderId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.orders.ApproveRefund(r.Context(), actorFrom(r), orderID); err != nil {
		writeClientError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, orderActionResponse{OrderID: orderID, Message: "refund approved"})
}

func statusParam(r *http.Request) (int, error) {
	status, err := strconv.Atoi(chi.URLParam(r, "status"))
	if err != nil {
		return 0, fmt.Errorf("status must be an integer")
	}
	return status, nil
}

func (h *PurchaseHandlers) forceOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "orderId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	status, err := statusParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	deliveries, err := h.orders.ForceOrderStatus(r.Context(), actorFrom(r), orderID, status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deliveries)
}

func (h *PurchaseHandlers) forceDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	deliveryID, err := int64Param(r, "deliveryId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	status, err := statusParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	delivery, err := h.orders.ForceDeliveryStatus(r.Context(), actorFrom(r), deliveryID, status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, delivery)
}

func (h *PurchaseHandlers) revenue(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	report, err := h.orders.RevenueReport(r.Context(), actorFrom(r), from, to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *PurchaseHandlers) purchasesByDateRange(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	details, err := h.orders.PurchasesByDateRange(r.Context(), actorFrom(r), from, to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(details))
}

func (h *PurchaseHandlers) refundRequests(w http.ResponseWriter, r *http.Request) {
	ids, err := h.orders.RefundRequestedOrders(r.Context(), actorFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(ids))
}

func (h *PurchaseHandlers) allPurchases(w http.ResponseWriter, r *http.Request) {
	details, err := h.orders.AllPurchases(r.Context(), actorFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(details))
}

func (h *PurchaseHandlers) myPurchases(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	page, err := h.orders.MyPurchases(r.Context(), actorFrom(r), cursor, queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *PurchaseHandlers) myOrders(w http.ResponseWriter, r *http.Request) {
	ids, err := h.orders.MyOrders(r.Context(), actorFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(ids))
}

func (h *PurchaseHandlers) allOrders(w http.ResponseWriter, r *http.Request) {
	ids, err := h.orders.AllOrders(r.Context(), actorFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, nonNil(ids))
}

func (h *PurchaseHandlers) orderDetails(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "orderId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	details, err := h.orders.OrderDetails(r.Context(), actorFrom(r), orderID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

type invoiceRequest struct {
	OrderID   uuid.UUID `json:"orderId"`
	UserID    int64     `json:"userId"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
}

func (h *PurchaseHandlers) invoiceByOrder(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	pdf, err := h.orders.InvoiceByOrder(r.Context(), actorFrom(r), orders.InvoiceRequest{
		OrderID:   req.OrderID,
		UserID:    req.UserID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="invoice-%s.pdf"`, req.OrderID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// nonNil keeps empty result sets encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
