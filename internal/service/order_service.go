package service

import (
	"alcyxob/course-marketplace/internal/domain"
	"alcyxob/course-marketplace/internal/logger"
	"alcyxob/course-marketplace/internal/repository"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderNotPending       = errors.New("order is not awaiting payment")
	ErrEmptyOrder            = errors.New("order must contain at least one course")
	ErrMixedCurrency         = errors.New("all courses in an order must share a currency")
	ErrPaymentFailed         = errors.New("payment was declined")
	ErrFulfillmentIncomplete = errors.New("order paid but some enrollments could not be created")
)

// PaymentProcessor charges an order and returns the provider's reference.
type PaymentProcessor interface {
	Charge(ctx context.Context, order *domain.Order, method string) (string, error)
}

// mockPaymentProcessor approves every charge except the "decline" method.
type mockPaymentProcessor struct{}

func NewMockPaymentProcessor() PaymentProcessor { return mockPaymentProcessor{} }

func (mockPaymentProcessor) Charge(_ context.Context, _ *domain.Order, method string) (string, error) {
	if method == "decline" {
		return "", ErrPaymentFailed
	}
	return "pay_" + uuid.NewString(), nil
}

// OrderReceipt is the outcome of paying an order.
type OrderReceipt struct {
	Order       *domain.Order        `json:"order"`
	Enrollments []domain.Enrollment  `json:"enrollments"`
	Skipped     []primitive.ObjectID `json:"skippedCourseIds,omitempty"` // Already enrolled
	Failed      []primitive.ObjectID `json:"failedCourseIds,omitempty"`
}

// --- Service Interface ---

type OrderService interface {
	CreateOrder(ctx context.Context, userID primitive.ObjectID, courseIDs []primitive.ObjectID) (*domain.Order, error)
	PayOrder(ctx context.Context, userID, orderID primitive.ObjectID, method string) (*OrderReceipt, error)
	GetOrder(ctx context.Context, userID, orderID primitive.ObjectID) (*domain.Order, error)
	ListMyOrders(ctx context.Context, userID primitive.ObjectID) ([]domain.Order, error)
}

// --- Service Implementation ---

type orderService struct {
	orderRepo      repository.OrderRepository
	courseRepo     repository.CourseRepository
	enrollmentRepo repository.EnrollmentRepository
	enrollments    EnrollmentService
	payments       PaymentProcessor
	log            *logger.Logger
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	courseRepo repository.CourseRepository,
	enrollmentRepo repository.EnrollmentRepository,
	enrollments EnrollmentService,
	payments PaymentProcessor,
	log *logger.Logger,
) OrderService {
	if payments == nil {
		payments = NewMockPaymentProcessor()
	}
	return &orderService{
		orderRepo:      orderRepo,
		courseRepo:     courseRepo,
		enrollmentRepo: enrollmentRepo,
		enrollments:    enrollments,
		payments:       payments,
		log:            log.With("service", "OrderService"),
	}
}

// CreateOrder prices a set of published courses the user is not yet enrolled in.
func (s *orderService) CreateOrder(ctx context.Context, userID primitive.ObjectID, courseIDs []primitive.ObjectID) (*domain.Order, error) {
	ids := uniqueObjectIDs(courseIDs)
	if len(ids) == 0 {
		return nil, ErrEmptyOrder
	}

	courses, err := s.courseRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load courses: %w", err)
	}
	if len(courses) != len(ids) { // At least one id does not exist
		return nil, ErrCourseNotFound
	}

	var amount int64
	currency := ""
	for _, c := range courses {
		if !c.Published { // Drafts are not for sale; hide them like missing courses
			return nil, ErrCourseNotFound
		}
		if currency == "" {
			currency = c.Currency
		} else if c.Currency != currency {
			return nil, ErrMixedCurrency
		}
		amount += c.Price

		// Refuse to charge for a course the user can already open
		_, err := s.enrollmentRepo.GetByUserAndCourse(ctx, userID, c.ID)
		if err == nil {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyEnrolled, c.ID.Hex())
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("check enrollment: %w", err)
		}
	}

	order := &domain.Order{
		UserID:    userID,
		CourseIDs: ids,
		Amount:    amount,
		Currency:  currency,
		Status:    domain.OrderPending,
	}
	id, err := s.orderRepo.Create(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	order.ID = id
	s.log.Info("order created", "order_id", id.Hex(), "courses", len(ids), "amount", amount, "currency", currency)
	return order, nil
}

// PayOrder charges a pending order and fulfills it into enrollments. Courses
// the user already owns are skipped, never overwritten.
func (s *orderService) PayOrder(ctx context.Context, userID, orderID primitive.ObjectID, method string) (*OrderReceipt, error) {
	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderPending {
		return nil, ErrOrderNotPending
	}

	paymentRef, chargeErr := s.payments.Charge(ctx, order, method)
	if chargeErr != nil {
		// Best effort: a concurrent pay attempt may already have moved the order
		if err := s.orderRepo.UpdateStatus(ctx, orderID, domain.OrderPending, domain.OrderFailed, ""); err != nil && !errors.Is(err, repository.ErrConflict) {
			s.log.Error("failed to mark order as failed", "order_id", orderID.Hex(), "error", err)
		}
		s.log.Warn("payment declined", "order_id", orderID.Hex(), "error", chargeErr)
		return nil, ErrPaymentFailed
	}

	// pending -> paid is a CAS, so only one caller fulfills the order
	if err := s.orderRepo.UpdateStatus(ctx, orderID, domain.OrderPending, domain.OrderPaid, paymentRef); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrOrderNotPending
		}
		return nil, fmt.Errorf("mark order paid: %w", err)
	}
	// Reload to pick up paidAt and paymentRef as stored
	order, err = s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	receipt := &OrderReceipt{Order: order, Enrollments: []domain.Enrollment{}}
	for _, courseID := range order.CourseIDs {
		enrollment, err := s.enrollments.CreateEnrollment(ctx, userID, courseID, &order.ID)
		switch {
		case err == nil:
			receipt.Enrollments = append(receipt.Enrollments, *enrollment)
		case errors.Is(err, ErrAlreadyEnrolled):
			s.log.Info("skipping enrollment, user already enrolled", "order_id", orderID.Hex(), "course_id", courseID.Hex())
			receipt.Skipped = append(receipt.Skipped, courseID)
		default:
			s.log.Error("failed to fulfill order line", "order_id", orderID.Hex(), "course_id", courseID.Hex(), "error", err)
			receipt.Failed = append(receipt.Failed, courseID)
		}
	}

	if len(receipt.Failed) > 0 {
		return receipt, ErrFulfillmentIncomplete
	}
	return receipt, nil
}

func (s *orderService) GetOrder(ctx context.Context, userID, orderID primitive.ObjectID) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order.UserID != userID { // Don't reveal other users' orders
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) ListMyOrders(ctx context.Context, userID primitive.ObjectID) ([]domain.Order, error) {
	return s.orderRepo.GetByUserID(ctx, userID)
}

func uniqueObjectIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
