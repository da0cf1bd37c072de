package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hyperflow/hyperflow/server/internal/service"
)

type MarketHandler struct {
	marketService *service.MarketService
}

func NewMarketHandler(service *service.MarketService) *MarketHandler {
	return &MarketHandler{
		marketService: service,
	}
}

func (h *MarketHandler) GetCoins(c *gin.Context) {
	coins, err := h.marketService.Coins(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"coins": coins})
}

func (h *MarketHandler) GetCoinData(c *gin.Context) {
	coin := c.Param("coin")
	limit := intQuery(c, "limit", 500)

	from, err := timeQuery(c, "from")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	to, err := timeQuery(c, "to")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := h.marketService.CoinData(c.Request.Context(), coin, limit, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(data.Points) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no data for " + coin})
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *MarketHandler) GetAnomalies(c *gin.Context) {
	coin := c.Query("coin")
	limit := intQuery(c, "limit", 100)

	summary, err := h.marketService.AnomalySummary(c.Request.Context(), coin, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *MarketHandler) GetAnomalyTrends(c *gin.Context) {
	coin := c.Param("coin")
	days := intQuery(c, "days", 7)

	trends, err := h.marketService.AnomalyTrends(c.Request.Context(), coin, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, trends)
}

func (h *MarketHandler) GetLogs(c *gin.Context) {
	coin := c.Query("coin")
	limit := intQuery(c, "limit", 50)

	logs, err := h.marketService.ETLLogs(c.Request.Context(), coin, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *MarketHandler) GetStats(c *gin.Context) {
	stats, err := h.marketService.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *MarketHandler) PostRefresh(c *gin.Context) {
	coin := c.Param("coin")

	records, err := h.marketService.Refresh(c.Request.Context(), coin)
	if err != nil {
		if errors.Is(err, service.ErrRefreshTooSoon) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"coin": coin, "records": records})
}

type analyzeRequest struct {
	Mode     string `json:"mode"`
	Question string `json:"question"`
	Limit    int    `json:"limit"`
}

func (h *MarketHandler) PostAnalyze(c *gin.Context) {
	coin := c.Param("coin")

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit <= 0 {
		req.Limit = 500
	}

	answer, err := h.marketService.Analyze(c.Request.Context(), coin, req.Mode, req.Question, req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"coin": coin, "mode": req.Mode, "answer": answer})
}

// timeQuery parses an optional RFC3339 query parameter.
func timeQuery(c *gin.Context, key string) (time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %v", key, err)
	}
	return t.UTC(), nil
}

func intQuery(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
