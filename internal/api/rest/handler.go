package rest

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reneepyh/ape-index/internal/adapter"
	"github.com/reneepyh/ape-index/internal/domain"
	"github.com/reneepyh/ape-index/internal/resale"
	"github.com/reneepyh/ape-index/internal/store"
)

const (
	defaultTraderLimit = 10
	maxTraderLimit     = 100
	topFlipCount       = 5
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// TimeBasedData aggregates sale volume over the selected interval
	// GET /api/v1/time-based-data?interval=<0|1|2|3>
	TimeBasedData(c *gin.Context)

	// TopBuyersSellers ranks buyers and sellers over the selected interval
	// GET /api/v1/top-buyers-sellers?interval=<0|1|2|3>&limit=<limit>
	TopBuyersSellers(c *gin.Context)

	// MarketplaceComparison aggregates sales per marketplace over the selected interval
	// GET /api/v1/marketplace-comparison?interval=<0|1|2|3>
	MarketplaceComparison(c *gin.Context)

	// ResaleData returns per-token resale summaries and the top flips
	// GET /api/v1/resale-data
	ResaleData(c *gin.Context)

	// TokenTransactions returns the full trade history of one token
	// GET /api/v1/token-transaction/:token_id
	TokenTransactions(c *gin.Context)

	// TokensOwned returns the tokens whose most recent buyer is the address
	// GET /api/v1/token-owned/:address
	TokensOwned(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	store store.Analytics
	clock adapter.Clock
}

// NewHandler creates a new REST API handler
func NewHandler(st store.Analytics, clock adapter.Clock) Handler {
	return &handler{store: st, clock: clock}
}

// parseInterval reads the interval query parameter. Missing means all time.
func (h *handler) parseInterval(c *gin.Context) (domain.Interval, bool) {
	raw := c.DefaultQuery("interval", strconv.Itoa(int(domain.IntervalAllTime)))
	value, err := strconv.Atoi(raw)
	if err != nil {
		respondBadRequest(c, "Invalid interval", "interval must be an integer between 0 and 3")
		return 0, false
	}

	interval := domain.Interval(value)
	if !interval.Valid() {
		respondBadRequest(c, "Invalid interval", "interval must be an integer between 0 and 3")
		return 0, false
	}
	return interval, true
}

// TimeBasedData aggregates sale volume over the selected interval
func (h *handler) TimeBasedData(c *gin.Context) {
	interval, ok := h.parseInterval(c)
	if !ok {
		return
	}
	since, _ := interval.Start(h.clock.Now())

	stats, err := h.store.TradeStatsSince(c.Request.Context(), since)
	if err != nil {
		respondInternalError(c, err, "Failed to aggregate trade stats")
		return
	}

	c.JSON(http.StatusOK, tradeStatsDTO{
		SaleCount:   stats.SaleCount,
		TotalVolume: stats.TotalVolume,
		AvgPrice:    stats.AvgPrice,
		MinPrice:    stats.MinPrice,
		MaxPrice:    stats.MaxPrice,
	})
}

// TopBuyersSellers ranks buyers and sellers over the selected interval
func (h *handler) TopBuyersSellers(c *gin.Context) {
	interval, ok := h.parseInterval(c)
	if !ok {
		return
	}
	since, _ := interval.Start(h.clock.Now())

	limit := defaultTraderLimit
	if raw := c.Query("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 || value > maxTraderLimit {
			respondBadRequest(c, "Invalid limit", "limit must be an integer between 1 and 100")
			return
		}
		limit = value
	}

	buyers, err := h.store.TopBuyers(c.Request.Context(), since, limit)
	if err != nil {
		respondInternalError(c, err, "Failed to rank buyers")
		return
	}

	sellers, err := h.store.TopSellers(c.Request.Context(), since, limit)
	if err != nil {
		respondInternalError(c, err, "Failed to rank sellers")
		return
	}

	c.JSON(http.StatusOK, topTradersDTO{
		Buyers:  toAddressActivityDTOs(buyers),
		Sellers: toAddressActivityDTOs(sellers),
	})
}

// MarketplaceComparison aggregates sales per marketplace over the selected interval
func (h *handler) MarketplaceComparison(c *gin.Context) {
	interval, ok := h.parseInterval(c)
	if !ok {
		return
	}
	since, _ := interval.Start(h.clock.Now())

	stats, err := h.store.MarketplaceComparison(c.Request.Context(), since)
	if err != nil {
		respondInternalError(c, err, "Failed to compare marketplaces")
		return
	}

	out := make([]marketStatsDTO, 0, len(stats))
	for _, row := range stats {
		out = append(out, marketStatsDTO{
			Market:      row.Market,
			SaleCount:   row.SaleCount,
			TotalVolume: row.TotalVolume,
			AvgPrice:    row.AvgPrice,
		})
	}

	c.JSON(http.StatusOK, out)
}

// ResaleData returns per-token resale summaries and the top flips over the
// selected interval
func (h *handler) ResaleData(c *gin.Context) {
	interval, ok := h.parseInterval(c)
	if !ok {
		return
	}
	since, bounded := interval.Start(h.clock.Now())

	rows, err := h.store.AllSales(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "Failed to load sales")
		return
	}

	sales := make([]resale.Sale, 0, len(rows))
	for _, row := range rows {
		sales = append(sales, resale.Sale{
			TokenID:  row.TokenID,
			Time:     row.Time,
			PriceUSD: row.PriceUSD,
			SellerID: row.SellerID,
		})
	}

	// Profits are computed over the full sale history so a flip's cost
	// basis can precede the window; only the realizing sale must fall
	// inside it.
	flips := resale.Flips(sales)
	if bounded {
		windowed := flips[:0]
		for _, f := range flips {
			if !f.SoldAt.Before(since) {
				windowed = append(windowed, f)
			}
		}
		flips = windowed
	}
	summaries := resale.Summarize(flips)
	top := resale.TopFlips(flips, topFlipCount)

	summaryDTOs := make([]resaleSummaryDTO, 0, len(summaries))
	for _, s := range summaries {
		summaryDTOs = append(summaryDTOs, resaleSummaryDTO{
			TokenID:     s.TokenID,
			ResaleCount: s.ResaleCount,
			TotalProfit: s.TotalProfit,
			AvgProfit:   s.AvgProfit,
		})
	}

	flipDTOs := make([]flipDTO, 0, len(top))
	for _, f := range top {
		dto := flipDTO{
			TokenID: f.TokenID,
			SoldAt:  f.SoldAt,
			Profit:  f.Profit,
		}
		if f.SellerID != nil {
			address, err := h.store.ResolveAddress(c.Request.Context(), *f.SellerID)
			if err != nil {
				respondInternalError(c, err, "Failed to resolve seller address",
					zap.Int64("seller_id", *f.SellerID))
				return
			}
			if address != "" {
				dto.Seller = &address
			}
		}
		flipDTOs = append(flipDTOs, dto)
	}

	c.JSON(http.StatusOK, resaleDataDTO{
		Summaries: summaryDTOs,
		TopFlips:  flipDTOs,
	})
}

// TokenTransactions returns the trade history of one token over the selected
// interval
func (h *handler) TokenTransactions(c *gin.Context) {
	tokenID, err := strconv.ParseInt(c.Param("token_id"), 10, 64)
	if err != nil || tokenID < 0 {
		respondBadRequest(c, "Invalid token id", "token_id must be a non-negative integer")
		return
	}
	interval, ok := h.parseInterval(c)
	if !ok {
		return
	}
	since, _ := interval.Start(h.clock.Now())

	rows, err := h.store.TokenTransactions(c.Request.Context(), tokenID, since)
	if err != nil {
		respondInternalError(c, err, "Failed to get token transactions",
			zap.Int64("token_id", tokenID))
		return
	}
	if len(rows) == 0 {
		respondNotFound(c, "Token has no recorded transactions")
		return
	}

	out := make([]tokenTransactionDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, tokenTransactionDTO{
			TransactionHash: row.TransactionHash,
			Time:            row.Time,
			PriceUSD:        row.PriceUSD,
			Market:          row.Market,
			Action:          row.Action,
			Buyer:           row.Buyer,
			Seller:          row.Seller,
		})
	}

	c.JSON(http.StatusOK, out)
}

// TokensOwned returns the tokens whose most recent buyer is the address
func (h *handler) TokensOwned(c *gin.Context) {
	address := c.Param("address")
	if !common.IsHexAddress(address) {
		respondBadRequest(c, "Invalid address", "address must be a 0x-prefixed hex address")
		return
	}

	holdings, err := h.store.TokensOwned(c.Request.Context(), address)
	if err != nil {
		respondInternalError(c, err, "Failed to get tokens owned",
			zap.String("address", address))
		return
	}

	out := make([]tokenHoldingDTO, 0, len(holdings))
	for _, row := range holdings {
		out = append(out, tokenHoldingDTO{
			TokenID:    row.TokenID,
			LastSoldAt: row.LastSoldAt,
			PriceUSD:   row.PriceUSD,
		})
	}

	c.JSON(http.StatusOK, out)
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
