package app

import (
	"context"
	"errors"
	"regexp"
	"strings"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_logrus "github.com/grpc-ecosystem/go-grpc-middleware/logging/logrus"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	metrics_util "github.com/code-payments/sol-trust/pkg/metrics"
)

const (
	healthCheckEndpoint = "/grpc.health.v1.Health/Check"

	grpcRequestPackageAttributeKey = "grpc.request.package"
	grpcRequestServiceAttributeKey = "grpc.request.service"
	grpcRequestMethodAttributeKey  = "grpc.request.method"

	grpcResponseStatusCodeAttributeKey    = "grpc.response.statusCode"
	grpcResponseStatusMessageAttributeKey = "grpc.response.statusMessage"
)

var fullMethodNameRegex = regexp.MustCompile("/([a-zA-Z0-9]+\\.)+[a-zA-Z0-9]+/[a-zA-Z0-9]+")

// parseFullMethodName parses a gRPC full method name into its components
func parseFullMethodName(fullMethodName string) (packageName, serviceName, methodName string, err error) {
	if !fullMethodNameRegex.MatchString(fullMethodName) {
		return "", "", "", errors.New("invalid full method name")
	}

	parts := strings.Split(fullMethodName, "/")
	methodName = parts[2]

	parts = strings.Split(parts[1], ".")
	serviceName = parts[len(parts)-1]
	packageName = strings.Join(parts[:len(parts)-1], ".")

	return packageName, serviceName, methodName, nil
}

// serverCodeIsServerError reports whether a status code indicates a fault on
// the server rather than a bad request.
func serverCodeIsServerError(code codes.Code) bool {
	switch code {
	case codes.DataLoss, codes.Unknown, codes.Internal, codes.Unimplemented:
		return true
	}
	return false
}

// newRelicUnaryServerInterceptor records each unary call as a New Relic
// transaction. Health checks are skipped.
func newRelicUnaryServerInterceptor(app *newrelic.Application) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if app == nil || info.FullMethod == healthCheckEndpoint {
			return handler(ctx, req)
		}

		// Inject the application to allow for any custom metrics, events, etc
		// in downstream code.
		ctx = metrics_util.WithNewRelicApp(ctx, app)

		txn := app.StartTransaction(strings.TrimPrefix(info.FullMethod, "/"))
		defer txn.End()

		ctx = newrelic.NewContext(ctx, txn)

		if packageName, serviceName, methodName, err := parseFullMethodName(info.FullMethod); err == nil {
			txn.AddAttribute(grpcRequestPackageAttributeKey, packageName)
			txn.AddAttribute(grpcRequestServiceAttributeKey, serviceName)
			txn.AddAttribute(grpcRequestMethodAttributeKey, methodName)
		}

		resp, err := handler(ctx, req)

		s := status.Convert(err)
		txn.AddAttribute(grpcResponseStatusCodeAttributeKey, s.Code().String())
		txn.AddAttribute(grpcResponseStatusMessageAttributeKey, s.Message())
		if serverCodeIsServerError(s.Code()) {
			txn.NoticeError(&newrelic.Error{
				Message: s.Message(),
				Class:   "gRPC Status: " + s.Code().String(),
			})
		}

		return resp, err
	}
}

func newGRPCServer(log *logrus.Entry, metricsProvider *newrelic.Application, o *opts) *grpc.Server {
	unary := []grpc.UnaryServerInterceptor{
		grpc_recovery.UnaryServerInterceptor(),
		newRelicUnaryServerInterceptor(metricsProvider),
		grpc_logrus.UnaryServerInterceptor(
			log,
			grpc_logrus.WithDecider(func(fullMethodName string, err error) bool {
				return err != nil || fullMethodName != healthCheckEndpoint
			}),
		),
	}
	stream := []grpc.StreamServerInterceptor{
		grpc_recovery.StreamServerInterceptor(),
		grpc_logrus.StreamServerInterceptor(log),
	}

	return grpc.NewServer(
		grpc_middleware.WithUnaryServerChain(append(unary, o.unaryServerInterceptors...)...),
		grpc_middleware.WithStreamServerChain(append(stream, o.streamServerInterceptors...)...),
	)
}

func registerHealth(server *grpc.Server) *health.Server {
	healthServer := health.NewServer()
	healthgrpc.RegisterHealthServer(server, healthServer)
	return healthServer
}

// Option configures the servers started by Run.
type Option func(o *opts)

type opts struct {
	unaryServerInterceptors  []grpc.UnaryServerInterceptor
	streamServerInterceptors []grpc.StreamServerInterceptor
}

// WithUnaryServerInterceptor appends a unary interceptor to the gRPC server,
// run after the default recovery, tracing and logging interceptors.
func WithUnaryServerInterceptor(interceptor grpc.UnaryServerInterceptor) Option {
	return func(o *opts) {
		o.unaryServerInterceptors = append(o.unaryServerInterceptors, interceptor)
	}
}

// WithStreamServerInterceptor appends a stream interceptor to the gRPC
// server, run after the default recovery and logging interceptors.
func WithStreamServerInterceptor(interceptor grpc.StreamServerInterceptor) Option {
	return func(o *opts) {
		o.streamServerInterceptors = append(o.streamServerInterceptors, interceptor)
	}
}
