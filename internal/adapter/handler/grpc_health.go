package handler

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// CheckoutServiceName is the health service name reported for the checkout flow.
const CheckoutServiceName = "storefront.Checkout"

// RegisterHealth registers the standard gRPC health service on s.
func RegisterHealth(s *grpc.Server) *health.Server {
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(CheckoutServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return hs
}
