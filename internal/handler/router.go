package handler

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler) *gin.Engine {
	r := gin.New()

	r.Use(RecoveryMiddleware(h.log))
	r.Use(LoggerMiddleware(h.log))
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1")
	{
		account := api.Group("/account")
		{
			account.POST("", h.CreateAccount)
			account.DELETE("", h.DeleteAccount)
			account.GET("", h.GetAccounts)
		}

		transaction := api.Group("/transaction")
		{
			transaction.POST("/use", h.UseBalance)
			transaction.POST("/cancel", h.CancelBalance)
			transaction.GET("/:transaction_id", h.QueryTransaction)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
