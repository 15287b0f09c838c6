// Package rpc serves a subset of the Solana JSON-RPC API over a ledger.
package rpc

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	xrate "golang.org/x/time/rate"

	"github.com/code-payments/sol-trust/pkg/ledger"
	"github.com/code-payments/sol-trust/pkg/ledger/accounts"
	"github.com/code-payments/sol-trust/pkg/metrics"
	"github.com/code-payments/sol-trust/pkg/rate"
	"github.com/code-payments/sol-trust/pkg/solana"
)

const (
	metricsStructName = "rpc.server"

	requestIDHeader = "X-Request-ID"
)

// Ledger is the ledger functionality exposed over RPC.
type Ledger interface {
	GetAccount(ctx context.Context, address ed25519.PublicKey) (*accounts.Record, error)
	GetBalance(ctx context.Context, address ed25519.PublicKey) (uint64, error)
	GetProgramAccounts(ctx context.Context, program ed25519.PublicKey) ([]*accounts.Record, error)
	GetSlot() uint64
	GetLatestBlockhash() (solana.Blockhash, uint64)
	IsBlockhashValid(bh solana.Blockhash) bool
	GetSignatureStatuses(sigs ...solana.Signature) []*ledger.Status
	RequestAirdrop(ctx context.Context, address ed25519.PublicKey, lamports uint64) (solana.Signature, error)
	SubmitTransaction(ctx context.Context, tx solana.Transaction) (solana.Signature, error)
}

type handlerFunc func(ctx context.Context, p params) (interface{}, *Error)

// Server handles JSON-RPC requests against a Ledger.
type Server struct {
	log    *logrus.Entry
	conf   *conf
	ledger Ledger

	airdropLimiter rate.Limiter
	handlers       map[string]handlerFunc

	registry *prometheus.Registry
	metrics  *serverMetrics
}

func NewServer(l Ledger, configProvider ConfigProvider) *Server {
	conf := configProvider()

	s := &Server{
		log:      logrus.StandardLogger().WithField("type", "rpc/server"),
		conf:     conf,
		ledger:   l,
		registry: prometheus.NewRegistry(),
	}
	s.metrics = newServerMetrics(s.registry)

	// A non-positive limit disables airdrop rate limiting.
	if limit := conf.airdropRateLimit.Get(context.Background()); limit > 0 {
		s.airdropLimiter = rate.NewLocalRateLimiter(xrate.Limit(limit))
	} else {
		s.airdropLimiter = &rate.NoLimiter{}
	}

	s.handlers = map[string]handlerFunc{
		"getAccountInfo":                    s.getAccountInfo,
		"getBalance":                        s.getBalance,
		"getHealth":                         s.getHealth,
		"getLatestBlockhash":                s.getLatestBlockhash,
		"getMinimumBalanceForRentExemption": s.getMinimumBalanceForRentExemption,
		"getProgramAccounts":                s.getProgramAccounts,
		"getSignatureStatuses":              s.getSignatureStatuses,
		"getSlot":                           s.getSlot,
		"isBlockhashValid":                  s.isBlockhashValid,
		"requestAirdrop":                    s.requestAirdrop,
		"sendTransaction":                   s.sendTransaction,
	}

	return s
}

// Handler returns the HTTP handler serving JSON-RPC at the root path, along
// with /health and /metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(requestIDMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Post("/", s.serveJSONRPC)

	return r
}

func (s *Server) serveJSONRPC(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(s.conf.maxRequestSize.Get(ctx))))
	if err != nil {
		s.writeResponse(w, &response{
			Version: jsonRPCVersion,
			ID:      json.RawMessage("null"),
			Error:   newError(invalidRequestCode, "request too large"),
		})
		return
	}

	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeResponse(w, &response{
			Version: jsonRPCVersion,
			ID:      json.RawMessage("null"),
			Error:   newError(parseErrorCode, "parse error"),
		})
		return
	}
	if len(req.ID) == 0 {
		req.ID = json.RawMessage("null")
	}

	log := s.log.WithFields(logrus.Fields{
		"method":     req.Method,
		"request_id": requestIDFromContext(ctx),
	})

	resp := &response{
		Version: jsonRPCVersion,
		ID:      req.ID,
	}

	handler, ok := s.handlers[req.Method]
	switch {
	case req.Version != jsonRPCVersion:
		resp.Error = newError(invalidRequestCode, "invalid request")
	case !ok:
		resp.Error = newError(methodNotFoundCode, "Method not found")
	default:
		start := time.Now()
		ctx = withRemoteAddr(ctx, r.RemoteAddr)
		resp.Result, resp.Error = s.invoke(ctx, req.Method, handler, req.Params)
		s.metrics.observe(req.Method, resp.Error, time.Since(start))
	}

	if resp.Error != nil {
		log.WithField("code", resp.Error.Code).Debug(resp.Error.Message)
	} else {
		log.Trace("request handled")
	}

	s.writeResponse(w, resp)
}

func (s *Server) invoke(ctx context.Context, method string, handler handlerFunc, p params) (interface{}, *Error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, method)
	defer tracer.End()

	result, rpcErr := handler(ctx, p)
	if rpcErr != nil {
		tracer.AddAttribute("code", rpcErr.Code)
		return nil, rpcErr
	}
	return result, nil
}

func (s *Server) writeResponse(w http.ResponseWriter, resp *response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.WithError(err).Warn("failed to write response")
	}
}

type requestIDKey struct{}

type remoteAddrKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func withRemoteAddr(ctx context.Context, remoteAddr string) context.Context {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return context.WithValue(ctx, remoteAddrKey{}, host)
}

func remoteAddrFromContext(ctx context.Context) string {
	addr, _ := ctx.Value(remoteAddrKey{}).(string)
	return addr
}
