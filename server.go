package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/boutique_backend/config"
	"github.com/mmdatafocus/boutique_backend/middlewares"
	"github.com/mmdatafocus/boutique_backend/models"
	"github.com/mmdatafocus/boutique_backend/phonepe"
	"github.com/mmdatafocus/boutique_backend/utils"
	"github.com/mmdatafocus/boutique_backend/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// RateLimiter throttles per client IP using a redis counter per window.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func getRedisClient(redisAddress string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
}

// respondError maps the error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrorValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorNoBalance):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func registerHandler(c *gin.Context) {
	var input models.NewUser
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	user, err := models.Register(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func registerAffiliateHandler(c *gin.Context) {
	var input models.NewUser
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	user, err := models.RegisterAffiliate(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func loginHandler(c *gin.Context) {
	var input models.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	result, err := models.Login(c.Request.Context(), &input)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) || errors.Is(err, utils.ErrorValidation) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong credentials"})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func generateLinkHandler(c *gin.Context) {
	var input models.NewAffiliateLink
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	// Non-admin affiliates can only mint links for themselves.
	if role, _ := utils.GetRoleFromContext(c.Request.Context()); role != string(models.UserRoleAdmin) {
		if userId, ok := utils.GetUserIdFromContext(c.Request.Context()); ok {
			input.AffiliateId = userId
		}
	}
	link, err := models.GenerateAffiliateLink(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

func clickHandler(c *gin.Context) {
	ref := c.Param("ref")
	err := models.RecordClick(c.Request.Context(), ref, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"referral_code": ref, "recorded": true})
}

func trackSaleHandler(c *gin.Context) {
	var req struct {
		OrderId      string `json:"order_id" binding:"required"`
		ReferralCode string `json:"referral_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := workflow.TrackSale(c.Request.Context(), req.OrderId, req.ReferralCode); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": req.OrderId, "credited": true})
}

func affiliateStatsHandler(c *gin.Context) {
	affiliateId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid affiliate id"})
		return
	}
	summary, err := models.GetAffiliateSummary(c.Request.Context(), affiliateId)
	if err != nil {
		respondError(c, err)
		return
	}
	links, err := models.ListAffiliateLinks(c.Request.Context(), affiliateId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary, "links": links})
}

func linkClicksHandler(c *gin.Context) {
	linkId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid link id"})
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	clicks, err := models.ListAffiliateClicks(c.Request.Context(), linkId, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, clicks)
}

func listAffiliatesHandler(c *gin.Context) {
	summaries, err := models.ListAffiliateSummaries(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

func affiliateDetailHandler(c *gin.Context) {
	affiliateId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid affiliate id"})
		return
	}
	summary, err := models.GetAffiliateSummary(c.Request.Context(), affiliateId)
	if err != nil {
		respondError(c, err)
		return
	}
	commissions, err := models.ListAffiliateCommissions(c.Request.Context(), affiliateId)
	if err != nil {
		respondError(c, err)
		return
	}
	user, err := models.GetUser(c.Request.Context(), affiliateId)
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary, "commissions": commissions, "user": user})
}

func approveAffiliateHandler(c *gin.Context) {
	userId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	user, err := models.ApproveAffiliate(c.Request.Context(), userId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func deleteAffiliateHandler(c *gin.Context) {
	userId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if err := models.DeleteAffiliate(c.Request.Context(), userId); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func payAffiliateHandler(c *gin.Context) {
	affiliateId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid affiliate id"})
		return
	}
	var req struct {
		Note string `json:"note"`
	}
	_ = c.ShouldBindJSON(&req)

	logger := config.GetLogger()

	// Redis lock is a best-effort optimization to fail fast on concurrent
	// payout clicks. Correctness does not depend on it: PayAffiliate also
	// serializes via MySQL advisory locks.
	if redisLock := config.GetRedisLock(); redisLock != nil {
		lock, lockErr := redisLock.Obtain(c.Request.Context(), fmt.Sprintf("payout:%d", affiliateId), 30*time.Second, nil)
		if lockErr == redislock.ErrNotObtained {
			c.JSON(http.StatusConflict, gin.H{"error": "payout already in progress"})
			return
		} else if lockErr != nil {
			logger.WithFields(logrus.Fields{
				"field":        "payAffiliateHandler",
				"affiliate_id": affiliateId,
			}).Warn("error obtaining redis lock; proceeding without redis lock: " + lockErr.Error())
		} else {
			defer func() {
				if releaseErr := lock.Release(c.Request.Context()); releaseErr != nil {
					logger.WithFields(logrus.Fields{
						"field":        "payAffiliateHandler",
						"affiliate_id": affiliateId,
					}).Warn("failed to release redis lock: " + releaseErr.Error())
				}
			}()
		}
	}

	payment, err := workflow.PayAffiliate(c.Request.Context(), affiliateId, req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func listPaymentsHandler(c *gin.Context) {
	affiliateId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid affiliate id"})
		return
	}
	payments, err := models.ListAffiliatePayments(c.Request.Context(), affiliateId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

func getCommissionHandler(c *gin.Context) {
	setting, err := models.GetCommissionSetting(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, setting)
}

func updateCommissionHandler(c *gin.Context) {
	var input models.NewCommissionSetting
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	setting, err := models.UpdateCommissionRate(c.Request.Context(), input.CommissionRate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, setting)
}

func createProductHandler(c *gin.Context) {
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	product, err := models.CreateProductWithVariants(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func updateProductHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	product, err := models.UpdateProductWithVariants(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func deleteProductHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	if err := models.DeleteProduct(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func listProductsHandler(c *gin.Context) {
	products, err := models.ListProducts(c.Request.Context(), c.Query("category"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func getProductHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	product, err := models.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func productVariantsHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	variants, err := models.ListVariantsByProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, variants)
}

// initiateOrderHandler creates the pending order, asking the gateway for an
// order id first. Without gateway credentials (local dev) a generated id is
// used so the rest of the flow still works end to end.
func initiateOrderHandler(gateway *phonepe.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewFullOrder
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if userId, ok := utils.GetUserIdFromContext(c.Request.Context()); ok {
			input.UserId = userId
		}

		var checkoutUrl string
		if gateway != nil {
			paise := input.Total.Mul(decimal.NewFromInt(100)).IntPart()
			resp, err := gateway.Initiate(c.Request.Context(), phonepe.InitiateRequest{
				MerchantOrderId: uuid.NewString(),
				AmountPaise:     paise,
				RedirectUrl:     strings.TrimSpace(os.Getenv("PHONEPE_REDIRECT_URL")),
			})
			if err != nil {
				respondError(c, err)
				return
			}
			input.PhonepeOrderId = resp.OrderId
			checkoutUrl = resp.RedirectUrl
		} else if strings.TrimSpace(input.PhonepeOrderId) == "" {
			input.PhonepeOrderId = "local-" + uuid.NewString()
		}

		order, err := models.InitiateOrder(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"order": order, "checkout_url": checkoutUrl})
	}
}

func paymentSuccessHandler(c *gin.Context) {
	var req struct {
		PhonepeOrderId string `json:"phonepe_order_id" binding:"required"`
		workflow.SettlementInput
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	// The callback may carry the final customer/cart payload; settle against
	// the stored snapshot when it does not.
	var input *workflow.SettlementInput
	if len(req.CartItems) > 0 || req.CustomerName != "" {
		input = &req.SettlementInput
	}

	// Same best-effort redis guard as payouts. A replayed confirmation is
	// already harmless; this only sheds concurrent duplicates early.
	if redisLock := config.GetRedisLock(); redisLock != nil {
		lock, lockErr := redisLock.Obtain(c.Request.Context(), "settle:"+req.PhonepeOrderId, 30*time.Second, nil)
		if lockErr == redislock.ErrNotObtained {
			c.JSON(http.StatusConflict, gin.H{"error": "settlement already in progress"})
			return
		} else if lockErr != nil {
			config.GetLogger().WithFields(logrus.Fields{
				"field":    "paymentSuccessHandler",
				"order_id": req.PhonepeOrderId,
			}).Warn("error obtaining redis lock; proceeding without redis lock: " + lockErr.Error())
		} else {
			defer func() {
				if releaseErr := lock.Release(c.Request.Context()); releaseErr != nil {
					config.GetLogger().Warn("error releasing redis lock: " + releaseErr.Error())
				}
			}()
		}
	}

	order, err := workflow.ConfirmAndSettle(c.Request.Context(), req.PhonepeOrderId, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// verifyOrderHandler polls the gateway and settles or fails the order based
// on the reported terminal state. Pending states return as-is.
func verifyOrderHandler(gateway *phonepe.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId := strings.TrimSpace(c.Query("order_id"))
		if orderId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "order_id is required"})
			return
		}
		if gateway == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment gateway not configured"})
			return
		}

		status, err := gateway.GetOrderStatus(c.Request.Context(), orderId)
		if err != nil {
			respondError(c, err)
			return
		}

		switch status.State {
		case phonepe.StateCompleted:
			order, err := workflow.ConfirmAndSettle(c.Request.Context(), orderId, nil)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"state": status.State, "order": order})
		case phonepe.StateFailed:
			order, err := workflow.MarkOrderFailed(c.Request.Context(), orderId)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"state": status.State, "order": order})
		default:
			c.JSON(http.StatusOK, gin.H{"state": status.State})
		}
	}
}

func listOrdersHandler(c *gin.Context) {
	userId := 0
	if v := c.Query("user_id"); v != "" {
		userId, _ = strconv.Atoi(v)
	}
	orders, err := models.ListOrders(c.Request.Context(), models.PaymentStatus(c.Query("payment_status")), userId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func orderAnalyticsHandler(c *gin.Context) {
	analytics, err := models.GetOrderAnalytics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

func updateOrderHandler(c *gin.Context) {
	var req struct {
		OrderStatus models.OrderStatus `json:"order_status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	order, err := models.UpdateOrderStatus(c.Request.Context(), c.Param("id"), req.OrderStatus)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the startup probe passes.
	// Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production require an explicit allowlist; elsewhere allow all.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = utils.SplitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// Optional rate limiting.
	// Env: RATE_LIMIT_ENABLED, RATE_LIMIT_WINDOW_SECONDS, RATE_LIMIT_MAX_REQUESTS.
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.AuthMiddleware())
	r.Use(middlewares.SessionMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	var gateway *phonepe.Client
	if g, err := phonepe.NewClient(); err == nil {
		gateway = g
	} else {
		logger.WithFields(logrus.Fields{"field": "phonepe"}).Warn("payment gateway disabled: " + err.Error())
	}

	auth := r.Group("/auth")
	{
		auth.POST("/register", registerHandler)
		auth.POST("/register-affiliate", registerAffiliateHandler)
		auth.POST("/login", loginHandler)
	}

	affiliate := r.Group("/affiliate")
	{
		affiliate.POST("/generate", middlewares.RequireRole(string(models.UserRoleAffiliater), string(models.UserRoleAdmin)), generateLinkHandler)
		affiliate.GET("/click/:ref", clickHandler)
		affiliate.POST("/track-sale", middlewares.RequireRole(string(models.UserRoleAdmin)), trackSaleHandler)
		affiliate.GET("/stats/:id", middlewares.RequireRole(string(models.UserRoleAffiliater), string(models.UserRoleAdmin)), affiliateStatsHandler)
		affiliate.GET("/links/:id/clicks", middlewares.RequireRole(string(models.UserRoleAffiliater), string(models.UserRoleAdmin)), linkClicksHandler)
	}

	admin := r.Group("/admin", middlewares.RequireRole(string(models.UserRoleAdmin)))
	{
		admin.GET("/affiliates", listAffiliatesHandler)
		admin.GET("/affiliates/:id", affiliateDetailHandler)
		admin.PUT("/affiliates/approve/:id", approveAffiliateHandler)
		admin.DELETE("/affiliates/:id", deleteAffiliateHandler)
		admin.POST("/affiliates/pay/:id", payAffiliateHandler)
		admin.GET("/affiliates/:id/payments", listPaymentsHandler)
		admin.GET("/commission", getCommissionHandler)
		admin.PUT("/commission", updateCommissionHandler)
		admin.GET("/orders", listOrdersHandler)
		admin.GET("/orders/analytics", orderAnalyticsHandler)
		admin.PUT("/orders/:id", updateOrderHandler)
	}

	products := r.Group("/products")
	{
		products.GET("", listProductsHandler)
		products.GET("/:id", getProductHandler)
		products.GET("/:id/variants", productVariantsHandler)
		products.POST("", middlewares.RequireRole(string(models.UserRoleAdmin)), createProductHandler)
		products.PUT("/:id", middlewares.RequireRole(string(models.UserRoleAdmin)), updateProductHandler)
		products.DELETE("/:id", middlewares.RequireRole(string(models.UserRoleAdmin)), deleteProductHandler)
	}

	order := r.Group("/order")
	{
		order.POST("/initiate", initiateOrderHandler(gateway))
		order.POST("/payment-success", paymentSuccessHandler)
		order.GET("/verify", verifyOrderHandler(gateway))
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables. Allow disabling migrations
	// on startup and running them as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger logs only requests that accumulated gin errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// RateLimitMiddleware checks the per-IP counter against the limit.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := c.ClientIP()

	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}
