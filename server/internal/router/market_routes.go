package router

import (
	"github.com/gin-gonic/gin"
	"github.com/hyperflow/hyperflow/server/internal/handler"
)

func registerMarketRoutes(router *gin.RouterGroup, marketHandler *handler.MarketHandler) {
	coins := router.Group("/coins")
	{
		coins.GET("", marketHandler.GetCoins)
		coins.GET("/:coin", marketHandler.GetCoinData)
		coins.GET("/:coin/anomalies/trends", marketHandler.GetAnomalyTrends)
		coins.POST("/:coin/refresh", marketHandler.PostRefresh)
		coins.POST("/:coin/analyze", marketHandler.PostAnalyze)
	}

	router.GET("/anomalies", marketHandler.GetAnomalies)
	router.GET("/logs", marketHandler.GetLogs)
	router.GET("/stats", marketHandler.GetStats)
}
