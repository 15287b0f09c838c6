// Package app runs long lived processes: an HTTP handler supplied by the
// application, a gRPC health service, and optional debug endpoints.
package app

import (
	"context"
	"expvar"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"

	metrics_util "github.com/code-payments/sol-trust/pkg/metrics"
)

// App is a long lived application that services network requests.
//
// The lifecycle of the App is tied to Run. The app gets initialized before
// the servers start, and gets stopped after they have stopped serving.
type App interface {
	// Init initializes the application in a blocking fashion. When Init
	// returns, the application is expected to be ready to receive requests.
	Init(config Config, metricsProvider *newrelic.Application) error

	// HTTPHandler returns the handler served on the RPC listen address.
	HTTPHandler() http.Handler

	// ShutdownChan returns a channel that is closed when the application is
	// shutdown, which initiates a shutdown of the servers.
	ShutdownChan() <-chan struct{}

	// Stop stops the application, allowing it to clean up any resources.
	//
	// Stop should be idempotent.
	Stop()
}

// GRPCRegistrar is implemented by applications serving gRPC services
// alongside the health service.
type GRPCRegistrar interface {
	RegisterWithGRPC(server *grpc.Server)
}

// Run initializes and serves app until ctx is done, one of the servers fails,
// or the app shuts down.
func Run(ctx context.Context, app App, config BaseConfig, options ...Option) error {
	logger := logrus.StandardLogger().WithField("type", "app")

	var metricsProvider *newrelic.Application
	if len(config.NewRelicLicenseKey) > 0 {
		nr, err := newrelic.NewApplication(
			newrelic.ConfigFromEnvironment(),
			newrelic.ConfigAppName(config.AppName),
			newrelic.ConfigLicense(config.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			return errors.Wrap(err, "error connecting to new relic")
		}

		metricsProvider = nr
		defer nr.Shutdown(5 * time.Second)
	}

	configureLogger(config, metricsProvider)

	if config.EnableExpvar || config.EnablePprof {
		debugServer := &http.Server{
			Addr:    config.DebugListenAddress,
			Handler: newDebugMux(config),
		}
		go func() {
			if err := debugServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Warn("debug http server failed")
			}
		}()
		defer debugServer.Close()
	}

	var ballast []byte
	if config.EnableBallast {
		ballast = newBallast(config.BallastCapacity)
	}

	memoryLeakShutdownCh := make(chan struct{})
	if config.EnableMemoryLeakCron {
		cronJob := cron.New(cron.WithLocation(time.Local))
		_, err := cronJob.AddFunc(config.MemoryLeakCronSchedule, func() {
			close(memoryLeakShutdownCh)
		})
		if err != nil {
			return errors.Wrap(err, "failed to initialize memory leak cron")
		}
		cronJob.Start()
		defer cronJob.Stop()
	}

	o := opts{}
	for _, option := range options {
		option(&o)
	}

	rpcLis, err := net.Listen("tcp", config.RPCListenAddress)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", config.RPCListenAddress)
	}
	grpcLis, err := net.Listen("tcp", config.GRPCListenAddress)
	if err != nil {
		rpcLis.Close()
		return errors.Wrapf(err, "failed to listen on %s", config.GRPCListenAddress)
	}

	if err := app.Init(config.AppConfig, metricsProvider); err != nil {
		rpcLis.Close()
		grpcLis.Close()
		return errors.Wrap(err, "failed to initialize application")
	}

	grpcServer := newGRPCServer(logger.WithField("server", "grpc"), metricsProvider, &o)
	if registrar, ok := app.(GRPCRegistrar); ok {
		registrar.RegisterWithGRPC(grpcServer)
	}
	healthServer := registerHealth(grpcServer)

	httpServer := &http.Server{
		Handler:           withNewRelic(metricsProvider, app.HTTPHandler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	httpShutdownCh := make(chan struct{})
	grpcShutdownCh := make(chan struct{})

	go func() {
		if err := httpServer.Serve(rpcLis); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http serve stopped")
		} else {
			logger.Info("http server stopped")
		}

		close(httpShutdownCh)
	}()

	go func() {
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.WithError(err).Error("grpc serve stopped")
		} else {
			logger.Info("grpc server stopped")
		}

		close(grpcShutdownCh)
	}()

	logger.WithFields(logrus.Fields{
		"rpc":  rpcLis.Addr().String(),
		"grpc": grpcLis.Addr().String(),
	}).Info("serving")

	// Wait for the following shutdown conditions:
	//    1. The context is done, typically due to an OS signal
	//    2. A server has shutdown (for whatever reason)
	//    3. The application has shutdown (for whatever reason)
	select {
	case <-ctx.Done():
		logger.Info("interrupt received, shutting down")
	case <-httpShutdownCh:
		logger.Info("http server shutdown")
	case <-grpcShutdownCh:
		logger.Info("grpc server shutdown")
	case <-memoryLeakShutdownCh:
		logger.Info("shutdown to deal with memory leak")
	case <-app.ShutdownChan():
		logger.Info("app shutdown")
	}

	healthServer.SetServingStatus("", healthgrpc.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownGracePeriod)
	defer cancel()

	shutdownCh := make(chan struct{})
	go func() {
		// Both the servers and the application have idempotent shutdown
		// methods, so they're all called regardless of the shutdown condition.
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("failed to gracefully stop http server")
		}
		grpcServer.GracefulStop()
		app.Stop()

		close(shutdownCh)
	}()

	select {
	case <-shutdownCh:
		// Ensure the ballast is used to avoid any possible compiler optimizations
		// around unused variable.
		if len(ballast) > 0 {
			ballast[0] = 1
		}

		return nil
	case <-shutdownCtx.Done():
		grpcServer.Stop()
		return errors.Errorf("failed to stop the application within %v", config.ShutdownGracePeriod)
	}
}

// We don't want to expose pprof/expvar on the RPC listener, so they're
// served from their own mux.
func newDebugMux(config BaseConfig) *http.ServeMux {
	mux := http.NewServeMux()
	if config.EnableExpvar {
		mux.Handle("/debug/vars", expvar.Handler())
	}
	if config.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

func withNewRelic(metricsProvider *newrelic.Application, handler http.Handler) http.Handler {
	if metricsProvider == nil {
		return handler
	}

	_, wrapped := newrelic.WrapHandle(metricsProvider, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := metrics_util.WithNewRelicApp(r.Context(), metricsProvider)
		handler.ServeHTTP(w, r.WithContext(ctx))
	}))
	return wrapped
}

func configureLogger(config BaseConfig, metricsProvider *newrelic.Application) {
	if metricsProvider != nil {
		logrus.SetFormatter(metrics_util.NewCustomNewRelicLogFormatter(metricsProvider, &logrus.JSONFormatter{}))
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	logrus.SetOutput(os.Stdout)
}
