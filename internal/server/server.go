package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"billrails/internal/biller"
	"billrails/internal/chain"
	"billrails/internal/flow"
	"billrails/internal/hmacauth"
	"billrails/internal/store"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Verifier is the slice of the biller client the verify endpoint needs.
type Verifier interface {
	VerifyBeneficiary(ctx context.Context, service, serviceID, identifier string) (*biller.Beneficiary, error)
}

type Config struct {
	HTTPPort      int
	HMACSecret    string
	HMACClockSkew time.Duration
}

type Server struct {
	cfg         Config
	engine      *flow.Engine
	verifier    Verifier
	store       store.Store
	hmac        *hmacauth.Verifier
	metrics     *metricsRegistry
	httpServer  *http.Server
	log         zerolog.Logger
	dbHealthFn  func(context.Context) error
	rpcHealthFn func(context.Context) error
}

func NewServer(cfg Config, engine *flow.Engine, verifier Verifier, st store.Store, exec chain.Executor, log zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		engine:   engine,
		verifier: verifier,
		store:    st,
		hmac: &hmacauth.Verifier{
			Secret:  cfg.HMACSecret,
			MaxSkew: cfg.HMACClockSkew,
		},
		metrics: newMetricsRegistry(),
		log:     log,
	}

	if checker, ok := st.(interface{ Ping(context.Context) error }); ok {
		s.dbHealthFn = checker.Ping
	}
	if checker, ok := exec.(chain.HealthChecker); ok {
		s.rpcHealthFn = checker.Ping
	}

	r := mux.NewRouter()
	r.Handle("/api/v1/purchases", s.hmac.Middleware(http.HandlerFunc(s.handlePurchase))).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/orders", s.handleOrders).Methods(http.MethodGet)
	r.Handle("/api/v1/verify", s.hmac.Middleware(http.HandlerFunc(s.handleVerify))).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/api/v1/metrics", s.metrics.handler()).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           requestIDMiddleware(r),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("API listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type purchaseRequest struct {
	ServiceType   string `json:"serviceType"`
	ServiceID     string `json:"serviceID"`
	VariationCode string `json:"variation_code,omitempty"`
	Beneficiary   string `json:"beneficiary"`
	Amount        int64  `json:"amount"`
	CryptoSymbol  string `json:"cryptoSymbol"`
	Verified      bool   `json:"verified,omitempty"`
}

type purchaseResponse struct {
	State           string          `json:"state"`
	RequestID       string          `json:"requestId,omitempty"`
	TransactionHash string          `json:"transactionHash,omitempty"`
	ApprovalHash    string          `json:"approvalHash,omitempty"`
	CryptoUsed      string          `json:"cryptoUsed,omitempty"`
	Receipt         *biller.Receipt `json:"receipt,omitempty"`
	Error           string          `json:"error,omitempty"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var payload purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondJSON(w, http.StatusBadRequest, purchaseResponse{State: string(flow.StateIdle), Error: "invalid json payload"})
		return
	}

	start := time.Now()
	res := s.engine.Run(r.Context(), flow.PurchaseRequest{
		ServiceType:         flow.ServiceType(payload.ServiceType),
		ServiceID:           payload.ServiceID,
		VariationCode:       payload.VariationCode,
		Beneficiary:         payload.Beneficiary,
		LocalAmount:         payload.Amount,
		TokenSymbol:         payload.CryptoSymbol,
		BeneficiaryVerified: payload.Verified,
	})
	s.metrics.observeDuration(time.Since(start).Seconds())
	s.metrics.incPurchase(string(res.State))

	resp := purchaseResponse{
		State:           string(res.State),
		RequestID:       res.IdempotencyKey,
		TransactionHash: res.TxHash,
		ApprovalHash:    res.ApprovalHash,
		CryptoUsed:      res.TokenAmount,
		Receipt:         res.Receipt,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}

	switch {
	case errors.Is(res.Err, flow.ErrBusy):
		respondJSON(w, http.StatusConflict, resp)
	case flow.IsValidationError(res.Err):
		respondJSON(w, http.StatusBadRequest, resp)
	case res.State == flow.StateSuccess:
		s.metrics.incFulfillment("succeeded")
		respondJSON(w, http.StatusCreated, resp)
	case res.State == flow.StateBackendFailed:
		// Paid on-chain but not fulfilled: the response keeps the request id
		// and hash in front of the caller for manual reconciliation.
		s.metrics.incFulfillment("failed")
		respondJSON(w, http.StatusBadGateway, resp)
	default:
		respondJSON(w, http.StatusBadGateway, resp)
	}
}

type ordersResponse struct {
	Orders []store.Purchase `json:"orders"`
	Page   int              `json:"page"`
	Total  int              `json:"total"`
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		http.Error(w, "address is required", http.StatusBadRequest)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	orders, total, err := s.store.ListByAddress(r.Context(), address, page, 20)
	if err != nil {
		s.log.Error().Err(err).Msg("order history lookup failed")
		http.Error(w, "failed to load orders", http.StatusInternalServerError)
		return
	}
	if orders == nil {
		orders = []store.Purchase{}
	}
	respondJSON(w, http.StatusOK, ordersResponse{Orders: orders, Page: page, Total: total})
}

type verifyRequest struct {
	ServiceType string `json:"serviceType"`
	ServiceID   string `json:"serviceID"`
	Beneficiary string `json:"billersCode"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var payload verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json payload", http.StatusBadRequest)
		return
	}
	if payload.ServiceID == "" || payload.Beneficiary == "" {
		http.Error(w, "serviceID and billersCode are required", http.StatusBadRequest)
		return
	}

	beneficiary, err := s.verifier.VerifyBeneficiary(r.Context(), payload.ServiceType, payload.ServiceID, payload.Beneficiary)
	if err != nil {
		var be *biller.Error
		if errors.As(err, &be) && be.Class == biller.ClassConnectivity {
			http.Error(w, "verification service unreachable", http.StatusBadGateway)
			return
		}
		http.Error(w, "beneficiary not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, beneficiary)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overallHealthy := true

	rpcInfo := struct {
		Connected bool    `json:"connected"`
		LatencyMs float64 `json:"latency_ms"`
		Error     string  `json:"error,omitempty"`
	}{}

	if s.rpcHealthFn != nil {
		start := time.Now()
		rpcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.rpcHealthFn(rpcCtx); err != nil {
			rpcInfo.Error = err.Error()
			overallHealthy = false
		} else {
			rpcInfo.Connected = true
			rpcInfo.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
		}
	} else {
		rpcInfo.Connected = true
	}

	dbInfo := struct {
		Connected bool   `json:"connected"`
		Error     string `json:"error,omitempty"`
	}{Connected: true}

	if s.dbHealthFn != nil {
		dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.dbHealthFn(dbCtx); err != nil {
			dbInfo.Connected = false
			dbInfo.Error = err.Error()
			overallHealthy = false
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !overallHealthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, struct {
		Status   string      `json:"status"`
		RPC      interface{} `json:"rpc"`
		Database interface{} `json:"database"`
	}{
		Status:   status,
		RPC:      rpcInfo,
		Database: dbInfo,
	})
}

func respondJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-Id") == "" {
			r.Header.Set("X-Request-Id", fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		next.ServeHTTP(w, r)
	})
}
