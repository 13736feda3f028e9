package order

import (
	"context"
	"errors"
	"strings"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/application/instrument"
	dominv "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// FallbackImage is shown for line items whose product image cannot be resolved.
const FallbackImage = "fallback.jpg"

const (
	useCaseTrackOrders = "order.track"
	useCaseMyOrders    = "order.my_orders"
	useCaseListOrders  = "order.list"
	useCaseGetOrder    = "order.get"
)

// QueryService serves the read-only projections over the order store.
type QueryService struct {
	orders  domain.Repository
	catalog dominv.Catalog
	kit     instrument.Kit
}

func NewQueryService(orders domain.Repository, catalog dominv.Catalog, tel observability.Observability) *QueryService {
	return &QueryService{
		orders:  orders,
		catalog: catalog,
		kit:     instrument.New(tel, orderService),
	}
}

type TrackOrdersInput struct {
	Email string
	Phone string
	// OrderCode optionally narrows the match to a single order.
	OrderCode string
}

// TrackOrders finds orders whose guest or registered contact matches both email and phone.
func (s *QueryService) TrackOrders(ctx context.Context, in TrackOrdersInput) (_ []*domain.Order, err error) {
	ctx, run := s.kit.Start(ctx, useCaseTrackOrders, "TrackOrders",
		attribute.Bool("order.code_given", in.OrderCode != ""),
	)
	var found int
	defer func() {
		run.With(observability.F("matched", found))
		if err != nil {
			run.Fail(statusFor(err))
		}
		run.End(err)
	}()

	email, phone := strings.TrimSpace(in.Email), strings.TrimSpace(in.Phone)
	if email == "" || phone == "" {
		return nil, newValidation("email and phone are required")
	}
	orders, err := s.orders.FindByContact(ctx, email, phone, strings.TrimSpace(in.OrderCode))
	if err != nil {
		return nil, classify(err)
	}
	found = len(orders)
	if found == 0 {
		return nil, ErrNotFound
	}
	return orders, nil
}

type MyOrdersResult struct {
	Orders []*domain.Order
	// Images maps product id to image, with FallbackImage filled in.
	Images map[string]string
}

// MyOrders lists a registered buyer's orders newest first.
func (s *QueryService) MyOrders(ctx context.Context, userID string) (_ *MyOrdersResult, err error) {
	ctx, run := s.kit.Start(ctx, useCaseMyOrders, "MyOrders")
	defer func() {
		if err != nil {
			run.Fail(statusFor(err))
		}
		run.End(err)
	}()

	if userID == "" {
		return nil, newValidation("user id is required")
	}
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, classify(err)
	}
	if len(orders) == 0 {
		return nil, ErrNotFound
	}

	ids := make([]string, 0)
	seen := make(map[string]struct{})
	for _, o := range orders {
		for _, it := range o.Items {
			if _, ok := seen[it.ProductID]; !ok {
				seen[it.ProductID] = struct{}{}
				ids = append(ids, it.ProductID)
			}
		}
	}

	images := make(map[string]string, len(ids))
	if s.catalog != nil {
		resolved, cerr := s.catalog.ProductImages(ctx, ids)
		if cerr != nil {
			run.Status("CATALOG_UNAVAILABLE")
			run.Logger().Warn("product_images_unavailable", observability.F("error", cerr.Error()))
		}
		for k, v := range resolved {
			images[k] = v
		}
	}
	for _, id := range ids {
		if images[id] == "" {
			images[id] = FallbackImage
		}
	}
	return &MyOrdersResult{Orders: orders, Images: images}, nil
}

func (s *QueryService) ListOrders(ctx context.Context) (_ []*domain.Order, err error) {
	ctx, run := s.kit.Start(ctx, useCaseListOrders, "ListOrders")
	defer func() {
		if err != nil {
			run.Fail(statusFor(err))
		}
		run.End(err)
	}()

	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return orders, nil
}

func (s *QueryService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.get(ctx, "id", id, s.orders.Get)
}

func (s *QueryService) GetOrderByCode(ctx context.Context, code string) (*domain.Order, error) {
	return s.get(ctx, "code", code, s.orders.GetByCode)
}

func (s *QueryService) get(ctx context.Context, by, key string, fetch func(context.Context, string) (*domain.Order, error)) (_ *domain.Order, err error) {
	ctx, run := s.kit.Start(ctx, useCaseGetOrder, "GetOrder", attribute.String("lookup.by", by))
	defer func() {
		run.With(observability.F("lookup_by", by), observability.F("lookup_key", key))
		if err != nil {
			run.Fail(statusFor(err))
		}
		run.End(err)
	}()

	if key == "" {
		return nil, newValidation("order " + by + " is required")
	}
	o, err := fetch(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return o, nil
}
