package api

import (
	"alcyxob/course-marketplace/internal/domain"
	"alcyxob/course-marketplace/internal/logger"
	"alcyxob/course-marketplace/internal/service"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderHandler struct {
	orderService service.OrderService
	log          *logger.Logger
}

func NewOrderHandler(orderService service.OrderService, log *logger.Logger) *OrderHandler {
	return &OrderHandler{orderService: orderService, log: log}
}

// --- DTOs ---

type CreateOrderRequest struct {
	CourseIDs []string `json:"courseIds" binding:"required,min=1,dive,len=24,hexadecimal"`
}

type PayOrderRequest struct {
	Method string `json:"method" binding:"required"`
}

type OrderResponse struct {
	ID         string             `json:"id"`
	CourseIDs  []string           `json:"courseIds"`
	Amount     int64              `json:"amount"`
	Currency   string             `json:"currency"`
	Status     domain.OrderStatus `json:"status"`
	PaymentRef string             `json:"paymentRef,omitempty"`
	PaidAt     *time.Time         `json:"paidAt,omitempty"`
	CreatedAt  time.Time          `json:"createdAt"`
}

type ReceiptResponse struct {
	Order            OrderResponse        `json:"order"`
	Enrollments      []EnrollmentResponse `json:"enrollments"`
	SkippedCourseIDs []string             `json:"skippedCourseIds,omitempty"`
	FailedCourseIDs  []string             `json:"failedCourseIds,omitempty"`
}

// CreateOrder godoc
// @Summary Create a pending order for one or more courses
// @Tags Orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param order body CreateOrderRequest true "Courses to buy"
// @Success 201 {object} OrderResponse
// @Failure 409 {object} gin.H "Already enrolled in a course"
// @Router /orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	courseIDs := make([]primitive.ObjectID, 0, len(req.CourseIDs))
	for _, hex := range req.CourseIDs {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid course ID format")
			return
		}
		courseIDs = append(courseIDs, id)
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), session.UserID, courseIDs)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, MapOrderToResponse(order))
}

// PayOrder godoc
// @Summary Pay a pending order and enroll in its courses
// @Tags Orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Param payment body PayOrderRequest true "Payment method"
// @Success 200 {object} ReceiptResponse
// @Failure 402 {object} gin.H "Payment declined"
// @Failure 409 {object} gin.H "Order not pending"
// @Router /orders/{orderId}/pay [post]
func (h *OrderHandler) PayOrder(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	orderID, ok := objectIDParam(c, "orderId")
	if !ok {
		return
	}
	var req PayOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	receipt, err := h.orderService.PayOrder(c.Request.Context(), session.UserID, orderID, req.Method)
	if err != nil {
		if errors.Is(err, service.ErrFulfillmentIncomplete) && receipt != nil {
			// Paid but partially fulfilled; the receipt lists the failed lines.
			c.JSON(http.StatusAccepted, MapReceiptToResponse(receipt))
			return
		}
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MapReceiptToResponse(receipt))
}

// ListOrders godoc
// @Summary List the caller's orders
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Success 200 {array} OrderResponse
// @Router /orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	orders, err := h.orderService.ListMyOrders(c.Request.Context(), session.UserID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	out := make([]OrderResponse, len(orders))
	for i := range orders {
		out[i] = MapOrderToResponse(&orders[i])
	}
	c.JSON(http.StatusOK, out)
}

// GetOrder godoc
// @Summary Get one of the caller's orders
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} OrderResponse
// @Failure 404 {object} gin.H "Order not found"
// @Router /orders/{orderId} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	orderID, ok := objectIDParam(c, "orderId")
	if !ok {
		return
	}
	order, err := h.orderService.GetOrder(c.Request.Context(), session.UserID, orderID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MapOrderToResponse(order))
}

func MapOrderToResponse(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:         o.ID.Hex(),
		CourseIDs:  hexIDs(o.CourseIDs),
		Amount:     o.Amount,
		Currency:   o.Currency,
		Status:     o.Status,
		PaymentRef: o.PaymentRef,
		PaidAt:     o.PaidAt,
		CreatedAt:  o.CreatedAt,
	}
	return resp
}

func MapReceiptToResponse(r *service.OrderReceipt) ReceiptResponse {
	resp := ReceiptResponse{
		Order:            MapOrderToResponse(r.Order),
		Enrollments:      make([]EnrollmentResponse, len(r.Enrollments)),
		SkippedCourseIDs: hexIDs(r.Skipped),
		FailedCourseIDs:  hexIDs(r.Failed),
	}
	for i := range r.Enrollments {
		resp.Enrollments[i] = MapEnrollmentToResponse(&r.Enrollments[i])
	}
	return resp
}

func hexIDs(ids []primitive.ObjectID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}
