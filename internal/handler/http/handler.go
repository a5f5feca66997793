package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Tonic56/coin-watchlist/internal/config"
	"github.com/Tonic56/coin-watchlist/internal/handler/middleware"
	"github.com/Tonic56/coin-watchlist/internal/models"
	"github.com/Tonic56/coin-watchlist/internal/schema"
	"github.com/Tonic56/coin-watchlist/internal/service"
	"github.com/Tonic56/coin-watchlist/internal/websocket"
	"github.com/Tonic56/coin-watchlist/lib/errs"
	"github.com/gin-gonic/gin"
	gorilla_ws "github.com/gorilla/websocket"
)

const maxLoginBody = 64 << 10

type Handler struct {
	marketService    service.MarketService
	watchlistService service.WatchlistService
	usersService     service.UsersService
	authService      service.AuthService
	feed             *service.WatchlistFeed
	wsManager        *websocket.Manager
	log              *slog.Logger
	security         config.SecConfig
	upgrader         gorilla_ws.Upgrader
}

func NewHandler(
	marketService service.MarketService,
	watchlistService service.WatchlistService,
	usersService service.UsersService,
	authService service.AuthService,
	wsManager *websocket.Manager,
	log *slog.Logger,
	security config.SecConfig,
) *Handler {
	return &Handler{
		marketService:    marketService,
		watchlistService: watchlistService,
		usersService:     usersService,
		authService:      authService,
		feed:             service.NewWatchlistFeed(watchlistService, marketService),
		wsManager:        wsManager,
		log:              log,
		security:         security,
		upgrader: gorilla_ws.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1", middleware.AuthMiddleware(h.authService, h.security.CookieName, h.log))
	{
		coins := api.Group("/coins")
		{
			coins.GET("/markets", h.marketCoins)
			coins.GET("/:id/history", h.coinHistoricalRange)
		}

		auth := api.Group("/auth")
		{
			auth.POST("/login", h.login)
			auth.POST("/logout", h.logout)
		}

		api.GET("/me", h.me)
		api.GET("/watchlist", h.watchlist)

		protected := api.Group("", middleware.RequireIdentity(h.log))
		{
			protected.POST("/watchlist/toggle", h.toggleWatchlist)
			protected.GET("/ws", h.wsConnect)
		}
	}
}

type marketCoinsQuery struct {
	Limit    int    `form:"limit"`
	Page     int    `form:"page"`
	Currency string `form:"currency"`
}

func (h *Handler) marketCoins(c *gin.Context) {
	var q marketCoinsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query", "details": err.Error()})
		return
	}

	if q.Limit < 1 || q.Limit > service.DefaultLimit {
		q.Limit = service.DefaultLimit
	}
	if q.Page < 1 {
		q.Page = service.DefaultPage
	}
	if q.Currency == "" {
		q.Currency = service.DefaultCurrency
	}

	coins, err := h.marketService.MarketCoinsWithTokens(c.Request.Context(), q.Limit, q.Page, q.Currency)
	if err != nil {
		h.writeError(c, "failed to load market coins", err)
		return
	}

	c.JSON(http.StatusOK, coins)
}

type historyQuery struct {
	Currency  string `form:"currency"`
	From      int64  `form:"from" binding:"required"`
	To        int64  `form:"to" binding:"required"`
	Precision string `form:"precision"`
}

func (h *Handler) coinHistoricalRange(c *gin.Context) {
	coinID := c.Param("id")

	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to are required unix timestamps"})
		return
	}
	if q.From >= q.To {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be before to"})
		return
	}
	if !validPrecision(q.Precision) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "precision must be 'full' or 0-18"})
		return
	}

	series, err := h.marketService.HistoricalRange(c.Request.Context(), coinID, q.Currency, q.From, q.To, q.Precision)
	if err != nil {
		h.writeError(c, "failed to load historical range", err)
		return
	}

	c.JSON(http.StatusOK, series)
}

func (h *Handler) me(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusOK, nil)
		return
	}

	user, err := h.usersService.GetUser(c.Request.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			c.JSON(http.StatusOK, nil)
			return
		}
		h.log.Error("failed to get user", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *Handler) watchlist(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		c.JSON(http.StatusOK, []models.CoinSummary{})
		return
	}

	coins, err := h.feed.Snapshot(c.Request.Context(), identity.UserID, c.DefaultQuery("currency", service.DefaultCurrency))
	if err != nil {
		h.writeError(c, "failed to load watchlist", err)
		return
	}

	c.JSON(http.StatusOK, coins)
}

func (h *Handler) login(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxLoginBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	input, err := schema.ParseLoginInput(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), input)
	if err != nil {
		switch {
		case errs.IsVerification(err):
			h.log.Warn("login rejected: signature verification failed", "address", input.Address)
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "signature verification failed"})
		case errs.IsValidation(err):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		default:
			h.log.Error("login failed", slog.Any("error", err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
		}
		return
	}

	maxAge := int(time.Until(result.ExpiresAt) / time.Second)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.security.CookieName, result.Token, maxAge, "/", "", h.security.CookieSecure, true)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) logout(c *gin.Context) {
	if identity, ok := middleware.Identity(c); ok {
		if err := h.authService.Logout(c.Request.Context(), identity.SessionID); err != nil {
			h.log.Error("failed to delete session", slog.Any("error", err), "sessionID", identity.SessionID)
		}
	}

	c.SetCookie(h.security.CookieName, "", -1, "/", "", h.security.CookieSecure, true)
	c.JSON(http.StatusOK, true)
}

type toggleRequest struct {
	CoinID string `json:"coinId" binding:"required"`
}

func (h *Handler) toggleWatchlist(c *gin.Context) {
	identity, _ := middleware.Identity(c)

	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body, 'coinId' is required"})
		return
	}

	watchlist, err := h.watchlistService.Toggle(c.Request.Context(), identity.UserID, req.CoinID)
	if err != nil {
		h.writeError(c, "failed to toggle watchlist", err)
		return
	}

	c.JSON(http.StatusOK, watchlist)
}

func (h *Handler) wsConnect(c *gin.Context) {
	identity, _ := middleware.Identity(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("failed to upgrade connection", "error", err)
		return
	}

	client := websocket.NewClient(h.wsManager, conn, identity.UserID, c.DefaultQuery("currency", service.DefaultCurrency))
	h.wsManager.Register(client)

	go client.Writer()
	go client.Reader()
}

func (h *Handler) writeError(c *gin.Context, msg string, err error) {
	switch {
	case errs.IsUpstream(err):
		h.log.Error(msg, slog.Any("error", err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "market data provider unavailable"})
	case errs.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, errs.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent update, try again"})
	default:
		h.log.Error(msg, slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func validPrecision(p string) bool {
	if p == "" || p == "full" {
		return true
	}
	n, err := strconv.Atoi(p)
	return err == nil && n >= 0 && n <= 18
}
