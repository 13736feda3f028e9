package observability

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
	MStockReservations       MetricKey = "stock_reservations_total"
	MOrdersExpired           MetricKey = "orders_expired_total"
	MEventsDispatched        MetricKey = "events_dispatched_total"
)
