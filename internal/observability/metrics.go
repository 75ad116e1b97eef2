package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the chat gateway.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	grpcServerHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpc_server_handled_total",
			Help: "Total number of gRPC requests handled by the server.",
		},
		[]string{"grpc_service", "grpc_method", "grpc_code"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"kind", "event"},
	)
	wsSlowClientsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_ws_slow_client_disconnects_total",
			Help: "Connections closed because their send buffer was full.",
		},
	)
	activeRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_active_rooms",
			Help: "Number of rooms with at least one local connection.",
		},
	)
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Messages persisted and broadcast, by conversation kind.",
		},
		[]string{"kind"},
	)
	statusTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_message_status_transitions_total",
			Help: "Message status transitions applied.",
		},
		[]string{"status"},
	)
	authzDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_authorization_denied_total",
			Help: "Operations rejected by the authorization gate.",
		},
		[]string{"kind"},
	)
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_errors_total",
			Help: "Error events returned to clients, by code.",
		},
		[]string{"code"},
	)
	pipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_pipeline_duration_seconds",
			Help:    "Message pipeline operation latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	backplaneErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_backplane_errors_total",
			Help: "Total number of backplane publish or decode errors.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		grpcServerHandledTotal,
		wsActiveConnections,
		wsEventsTotal,
		wsSlowClientsTotal,
		activeRooms,
		messagesTotal,
		statusTransitionsTotal,
		authzDeniedTotal,
		errorsTotal,
		pipelineDuration,
		backplaneErrorsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func GRPCServerMetricsUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		statusInfo := status.Convert(err)
		service, method := splitFullMethod(info.FullMethod)
		grpcServerHandledTotal.WithLabelValues(service, method, statusInfo.Code().String()).Inc()
		return resp, err
	}
}

func splitFullMethod(fullMethod string) (string, string) {
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 3 {
		return "unknown", "unknown"
	}
	return parts[1], parts[2]
}

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncSlowClient() {
	wsSlowClientsTotal.Inc()
}

func SetActiveRooms(n int) {
	activeRooms.Set(float64(n))
}

func IncMessage(kind string) {
	messagesTotal.WithLabelValues(kind).Inc()
}

func IncStatusTransition(status string) {
	statusTransitionsTotal.WithLabelValues(status).Inc()
}

func IncAuthzDenied(kind string) {
	authzDeniedTotal.WithLabelValues(kind).Inc()
}

func IncError(code string) {
	errorsTotal.WithLabelValues(code).Inc()
}

// ObservePipeline records the latency of a pipeline op started at start.
func ObservePipeline(op string, start time.Time) {
	pipelineDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func IncBackplaneError() {
	backplaneErrorsTotal.Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
