package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tradepilot/internal/decision"
	"tradepilot/internal/engine"
	"tradepilot/internal/logger"
	"tradepilot/internal/store"
)

// Server exposes the read-only query surface: ledger snapshots, performance
// metrics and decision history per account. No mutation endpoints.
type Server struct {
	addr    string
	router  *gin.Engine
	httpSrv *http.Server
}

type Accounts interface {
	AccountIDs() []string
	Engine(accountID string) (*engine.Engine, bool)
	CacheStats(accountID string) (decision.CacheStats, bool)
}

func NewServer(addr string, accounts Accounts, st *store.Store) (*Server, error) {
	if accounts == nil {
		return nil, errors.New("http server requires accounts")
	}
	if addr == "" {
		addr = ":9980"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	h := &handlers{accounts: accounts, store: st}
	api := router.Group("/api")
	api.GET("/accounts", h.listAccounts)
	api.GET("/accounts/:id/ledger", h.ledgerSnapshot)
	api.GET("/accounts/:id/performance", h.performance)
	api.GET("/accounts/:id/decisions", h.decisions)
	api.GET("/accounts/:id/cache", h.cacheStats)

	return &Server{addr: addr, router: router}, nil
}

func (s *Server) Start() {
	s.httpSrv = &http.Server{Addr: s.addr, Handler: s.router}
	go func() {
		logger.Infof("http: listening on %s", s.addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("http: server stopped: %v", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("http: %s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start).Truncate(time.Millisecond))
	}
}

type handlers struct {
	accounts Accounts
	store    *store.Store
}

func (h *handlers) listAccounts(c *gin.Context) {
	type accountSummary struct {
		ID     string  `json:"id"`
		Equity string  `json:"equity"`
		Cash   string  `json:"cash"`
		Trades int     `json:"trades"`
		Open   int     `json:"open_positions"`
		PnL    float64 `json:"total_pnl"`
	}
	out := make([]accountSummary, 0)
	for _, id := range h.accounts.AccountIDs() {
		eng, ok := h.accounts.Engine(id)
		if !ok {
			continue
		}
		led := eng.Ledger()
		perf := eng.Performance()
		out = append(out, accountSummary{
			ID:     id,
			Equity: led.Equity().String(),
			Cash:   led.Cash().String(),
			Trades: perf.Trades,
			Open:   len(led.OpenPositions()),
			PnL:    perf.TotalPnL,
		})
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

func (h *handlers) ledgerSnapshot(c *gin.Context) {
	eng, ok := h.accounts.Engine(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown account"})
		return
	}
	led := eng.Ledger()
	c.JSON(http.StatusOK, gin.H{
		"account_id":   led.AccountID(),
		"cash":         led.Cash().String(),
		"equity":       led.Equity().String(),
		"positions":    led.OpenPositions(),
		"trades":       led.Trades(),
		"equity_curve": led.EquityCurve(),
	})
}

func (h *handlers) performance(c *gin.Context) {
	eng, ok := h.accounts.Engine(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown account"})
		return
	}
	c.JSON(http.StatusOK, eng.Performance())
}

func (h *handlers) decisions(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "decision log not configured"})
		return
	}
	id := c.Param("id")
	if _, ok := h.accounts.Engine(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown account"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	rows, err := h.store.RecentDecisions(id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": rows})
}

func (h *handlers) cacheStats(c *gin.Context) {
	stats, ok := h.accounts.CacheStats(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown account"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
