package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"SerpEngine/internal/ingestion"
	"SerpEngine/internal/ledger"
	"SerpEngine/internal/observability"
	"SerpEngine/internal/persistence"
	"SerpEngine/internal/projection"
	"SerpEngine/internal/query"
)

// GRPCServer wraps the gRPC server (health + reflection) and the
// gateway HTTP mux serving the query and admin-ingest endpoints as
// HTTP/JSON.
type GRPCServer struct {
	grpcServer    *grpc.Server
	httpServer    *http.Server
	grpcAddr      string
	httpAddr      string
	deps          *ServerDeps
	healthChecker *observability.HealthChecker
	log           zerolog.Logger
}

// ServerDeps holds all dependencies needed by the API handlers.
type ServerDeps struct {
	DB            *sql.DB
	QueryService  *query.QueryService
	IngestService *ingestion.GRPCIngestService
	SnapshotMgr   *persistence.SnapshotManager
	StartTime     time.Time
	HealthChecker *observability.HealthChecker
	Metrics       *observability.Metrics
}

// NewGRPCServer creates the gRPC server with health and reflection
// registered. Queries and admin ingest are served on the HTTP gateway.
func NewGRPCServer(grpcAddr, httpAddr string, deps *ServerDeps, log zerolog.Logger) *GRPCServer {
	grpcServer := grpc.NewServer()

	// Health check
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// Reflection for grpcurl / grpcui
	reflection.Register(grpcServer)

	return &GRPCServer{
		grpcServer:    grpcServer,
		grpcAddr:      grpcAddr,
		httpAddr:      httpAddr,
		deps:          deps,
		healthChecker: deps.HealthChecker,
		log:           log,
	}
}

// StartGRPC starts the gRPC server (blocking).
func (s *GRPCServer) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("gRPC server shutting down")
		s.grpcServer.GracefulStop()
	}()

	s.log.Info().Str("addr", s.grpcAddr).Msg("gRPC server listening")
	return s.grpcServer.Serve(lis)
}

// StartHTTPGateway starts the HTTP/JSON API (blocking). Handlers are
// registered on a gateway mux via HandlePath and call the query and
// ingest services directly.
func (s *GRPCServer) StartHTTPGateway(ctx context.Context) error {
	mux := runtime.NewServeMux()

	if err := s.registerQueryRoutes(mux); err != nil {
		return fmt.Errorf("register query routes: %w", err)
	}
	if err := s.registerAdminRoutes(mux); err != nil {
		return fmt.Errorf("register admin routes: %w", err)
	}

	httpMux := http.NewServeMux()
	if s.healthChecker != nil {
		httpMux.HandleFunc("/healthz", s.healthChecker.LivenessHandler)
		httpMux.HandleFunc("/readyz", s.healthChecker.ReadinessHandler)
	} else {
		httpMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"status":"ok"}`)
		})
	}
	httpMux.Handle("/", s.instrument(mux))

	s.httpServer = &http.Server{
		Addr:    s.httpAddr,
		Handler: httpMux,
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("HTTP gateway shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", s.httpAddr).Msg("HTTP gateway listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records per-endpoint request counts, latency, and error
// codes for every gateway request.
func (s *GRPCServer) instrument(next http.Handler) http.Handler {
	m := s.deps.Metrics
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		endpoint := r.Method + " " + r.URL.Path
		m.QueryRequests.WithLabelValues(endpoint, strconv.Itoa(rec.status)).Inc()
		m.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		if rec.status >= 400 {
			m.QueryErrors.WithLabelValues(endpoint, strconv.Itoa(rec.status)).Inc()
		}
	})
}

// ============================================================================
// Query routes
// ============================================================================

func (s *GRPCServer) registerQueryRoutes(mux *runtime.ServeMux) error {
	qs := s.deps.QueryService

	if err := mux.HandlePath("GET", "/v1/auctions", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		q := r.URL.Query()
		auctions, err := qs.ListAuctions(r.Context(),
			optString(q.Get("kind")),
			optString(q.Get("status")),
			limitParam(q.Get("limit"), 50, 500),
			optInt64(q.Get("after_sequence")),
		)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, map[string]any{"auctions": auctions})
	}); err != nil {
		return err
	}

	if err := mux.HandlePath("GET", "/v1/auctions/{auction_id}", func(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
		auctionID, err := strconv.ParseUint(pathParams["auction_id"], 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid auction_id: %w", err))
			return
		}
		auction, err := qs.GetAuction(r.Context(), auctionID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if auction == nil {
			writeError(w, http.StatusNotFound, fmt.Errorf("auction %d not found", auctionID))
			return
		}
		writeJSON(w, auction)
	}); err != nil {
		return err
	}

	if err := mux.HandlePath("GET", "/v1/stabilization", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		q := r.URL.Query()
		history, err := qs.GetStabilizationHistory(r.Context(),
			optString(q.Get("asset")),
			limitParam(q.Get("limit"), 50, 500),
			optInt64(q.Get("after_sequence")),
		)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, map[string]any{"history": history})
	}); err != nil {
		return err
	}

	if err := mux.HandlePath("GET", "/v1/stabilization/deliveries", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		q := r.URL.Query()
		asset := q.Get("asset")
		if asset == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("asset is required"))
			return
		}
		deliveries, err := qs.GetSerpUpDeliveries(r.Context(), asset, limitParam(q.Get("limit"), 50, 500))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, map[string]any{"deliveries": deliveries})
	}); err != nil {
		return err
	}

	if err := mux.HandlePath("GET", "/v1/swaps", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		swaps, err := qs.GetSwapHistory(r.Context(), limitParam(r.URL.Query().Get("limit"), 50, 500))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, map[string]any{"swaps": swaps})
	}); err != nil {
		return err
	}

	return mux.HandlePath("GET", "/v1/pools", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		pools, err := qs.GetPools(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, map[string]any{"pools": pools})
	})
}

// ============================================================================
// Admin routes
// ============================================================================

func (s *GRPCServer) registerAdminRoutes(mux *runtime.ServeMux) error {
	svc := s.deps.IngestService

	if err := mux.HandlePath("POST", "/v1/admin/deposits", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		var req struct {
			Account    string `json:"account"`
			Asset      string `json:"asset"`
			Amount     uint64 `json:"amount"`
			ToTreasury bool   `json:"to_treasury"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		account, err := ledger.ParseAccountPath(req.Account)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		asset, ok := ledger.ParseAsset(req.Asset)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("unknown asset %q", req.Asset))
			return
		}
		if err := svc.InjectDeposit(r.Context(), account, asset, req.Amount, req.ToTreasury); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeAccepted(w)
	}); err != nil {
		return err
	}

	if err := mux.HandlePath("POST", "/v1/admin/prices", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		var req struct {
			Asset    string `json:"asset"`
			Quote    int64  `json:"quote"`
			Sequence int64  `json:"sequence"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		asset, ok := ledger.ParseAsset(req.Asset)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("unknown asset %q", req.Asset))
			return
		}
		if err := svc.InjectPrice(r.Context(), asset, req.Quote, req.Sequence); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeAccepted(w)
	}); err != nil {
		return err
	}

	if err := mux.HandlePath("POST", "/v1/admin/auctions/{auction_id}/close", func(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
		auctionID, err := strconv.ParseUint(pathParams["auction_id"], 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid auction_id: %w", err))
			return
		}
		if err := svc.InjectCloseAuction(r.Context(), auctionID); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeAccepted(w)
	}); err != nil {
		return err
	}

	if err := mux.HandlePath("POST", "/v1/admin/lot-size", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		var req struct {
			MaxLot uint64 `json:"max_lot"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := svc.InjectLotSizeUpdate(r.Context(), req.MaxLot); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeAccepted(w)
	}); err != nil {
		return err
	}

	if err := mux.HandlePath("POST", "/v1/admin/swaps", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		var req struct {
			Supply    uint64 `json:"supply"`
			MinTarget uint64 `json:"min_target"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := svc.InjectTreasurySwap(r.Context(), req.Supply, req.MinTarget); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeAccepted(w)
	}); err != nil {
		return err
	}

	if err := mux.HandlePath("POST", "/v1/admin/rebuild-projections", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		if err := projection.RebuildProjections(r.Context(), s.deps.DB, s.log); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, map[string]any{"rebuilt": true})
	}); err != nil {
		return err
	}

	if err := mux.HandlePath("GET", "/v1/admin/eventlog", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		latestSeq, err := s.deps.SnapshotMgr.GetLatestSequence(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, map[string]any{
			"last_sequence":  latestSeq,
			"uptime_seconds": int64(time.Since(s.deps.StartTime).Seconds()),
		})
	}); err != nil {
		return err
	}

	return mux.HandlePath("GET", "/v1/admin/integrity", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		report, err := s.deps.QueryService.VerifyIntegrity(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, report)
	})
}

// ============================================================================
// Helpers
// ============================================================================

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func writeAccepted(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintf(w, `{"accepted":true}`)
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optInt64(s string) *int64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func limitParam(s string, def, max int) int {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 || v > max {
		return def
	}
	return v
}
