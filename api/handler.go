package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rustyeddy/backtester/internal/id"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/metrics"
)

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// ListRuns returns run summaries, newest first. ?limit=N caps the count.
func (h *Handler) ListRuns(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]gin.H, 0, len(runs))
	for _, r := range runs {
		out = append(out, summary(r))
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "data": out})
}

func (h *Handler) GetRun(c *gin.Context) {
	r, err := h.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary(r)})
}

func (h *Handler) DeleteRun(c *gin.Context) {
	if err := h.store.DeleteRun(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetEquity(c *gin.Context) {
	if !h.exists(c) {
		return
	}
	pts, err := h.store.ListEquity(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(pts), "data": nonNil(pts)})
}

func (h *Handler) GetFills(c *gin.Context) {
	if !h.exists(c) {
		return
	}
	fills, err := h.store.ListFills(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(fills), "data": nonNil(fills)})
}

func (h *Handler) GetTrades(c *gin.Context) {
	if !h.exists(c) {
		return
	}
	trades, err := h.store.ListTrades(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(trades), "data": nonNil(trades)})
}

// GetDrawdown derives the drawdown series from the stored equity curve.
func (h *Handler) GetDrawdown(c *gin.Context) {
	if !h.exists(c) {
		return
	}
	pts, err := h.store.ListEquity(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	dd := metrics.Drawdowns(pts)
	c.JSON(http.StatusOK, gin.H{"count": len(dd), "data": dd})
}

// GetOrg returns the run as an org-mode document.
func (h *Handler) GetOrg(c *gin.Context) {
	org, err := h.store.ExportOrg(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/org; charset=utf-8", []byte(org))
}

func (h *Handler) exists(c *gin.Context) bool {
	if _, err := h.store.GetRun(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return false
	}
	return true
}

// validRunID rejects a malformed :id before it reaches the store.
func validRunID(c *gin.Context) {
	if !id.Valid(c.Param("id")) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid run id", "id": c.Param("id")})
		return
	}
	c.Next()
}

func fail(c *gin.Context, err error) {
	if errors.Is(err, journal.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found", "id": c.Param("id")})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// summary flattens a run for JSON. encoding/json rejects NaN and Inf, so
// the profit factor is null without trades and "inf" without losses.
func summary(r journal.Run) gin.H {
	m := r.Metrics
	return gin.H{
		"run_id":          r.RunID,
		"created":         r.Created,
		"strategy":        r.Strategy,
		"params":          r.Params,
		"symbols":         r.Symbols,
		"dataset":         r.Dataset,
		"start":           r.Start,
		"end":             r.End,
		"initial_capital": r.InitialCapital,
		"final_equity":    r.FinalEquity,
		"net_pl":          r.NetPL(),
		"costs":           r.Costs,
		"allow_shorts":    r.AllowShorts,
		"notes":           r.Notes,
		"metrics": gin.H{
			"total_return":  finite(m.TotalReturn),
			"cagr":          finite(m.CAGR),
			"sharpe":        finite(m.Sharpe),
			"max_drawdown":  finite(m.MaxDrawdown),
			"win_rate":      finite(m.WinRate),
			"profit_factor": finite(m.ProfitFactor),
			"avg_duration":  finite(m.AvgDuration),
			"trades":        m.Trades,
			"wins":          m.Wins,
			"losses":        m.Losses,
			"gross_profit":  finite(m.GrossProfit),
			"gross_loss":    finite(m.GrossLoss),
		},
	}
}

func finite(v float64) any {
	switch {
	case math.IsNaN(v):
		return nil
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return v
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
