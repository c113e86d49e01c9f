package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/baleledger/internal/domain/models"
	"github.com/mamadbah2/baleledger/internal/service/notifier"
)

const defaultRequestTimeout = 10 * time.Second

// Ledger is the set of asynchronous ledger operations exposed over HTTP.
type Ledger interface {
	ReadStock(ctx context.Context) string
	WriteStock(ctx context.Context, stock models.StockAggregate) string
	CreateRecord(ctx context.Context, in models.SaleInput) string
	DeleteRecord(ctx context.Context, in models.DeleteInput) string
	FetchDailyRecords(ctx context.Context, date string) string
	FetchCustomerRecords(ctx context.Context, name string) string
	SearchCustomers(ctx context.Context, prefix string) string
	MonthlyTotals(ctx context.Context, month, year int) string
}

// Subscriber hands out event subscriptions.
type Subscriber interface {
	Subscribe() *notifier.Subscription
}

// Reporter renders the daily report of a given day.
type Reporter interface {
	GenerateDailyReport(ctx context.Context, day time.Time) (string, error)
}

// LedgerHandler adapts the ledger to HTTP. Each call subscribes, issues the
// operation and answers with every event of the request.
type LedgerHandler struct {
	ledger   Ledger
	events   Subscriber
	reporter Reporter
	timeout  time.Duration
	logger   *zap.Logger
}

// NewLedgerHandler constructs the HTTP handler adapter. reporter may be nil.
func NewLedgerHandler(ledger Ledger, events Subscriber, reporter Reporter, logger *zap.Logger) *LedgerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerHandler{
		ledger:   ledger,
		events:   events,
		reporter: reporter,
		timeout:  defaultRequestTimeout,
		logger:   logger,
	}
}

// Register mounts the ledger routes.
func (h *LedgerHandler) Register(r gin.IRouter) {
	r.GET("/stock", h.ReadStock)
	r.PUT("/stock", h.WriteStock)
	r.POST("/records", h.CreateRecord)
	r.DELETE("/records/:id", h.DeleteRecord)
	r.GET("/daily/:date", h.DailyRecords)
	r.GET("/customers", h.SearchCustomers)
	r.GET("/customers/:name/records", h.CustomerRecords)
	r.GET("/monthly/:year/:month", h.MonthlyTotals)
	r.GET("/reports/daily", h.DailyReport)
	r.GET("/events", h.Stream)
}

// EventView is the wire form of an event.
type EventView struct {
	notifier.Event
	Message string `json:"message,omitempty"`
}

// Response carries every event of one request, the terminal one last.
type Response struct {
	RequestID string      `json:"requestId"`
	Events    []EventView `json:"events"`
}

func view(ev notifier.Event) EventView {
	v := EventView{Event: ev}
	if ev.Err != nil {
		v.Message = ev.Err.Error()
	}
	return v
}

// ReadStock reports the inventory.
func (h *LedgerHandler) ReadStock(c *gin.Context) {
	h.respond(c, func(ctx context.Context) string {
		return h.ledger.ReadStock(ctx)
	})
}

// WriteStock overwrites the inventory.
func (h *LedgerHandler) WriteStock(c *gin.Context) {
	var stock models.StockAggregate
	if err := c.ShouldBindJSON(&stock); err != nil {
		h.badRequest(c, "invalid stock payload", err)
		return
	}

	h.respond(c, func(ctx context.Context) string {
		return h.ledger.WriteStock(ctx, stock)
	})
}

// CreateRecord records a sale.
func (h *LedgerHandler) CreateRecord(c *gin.Context) {
	var in models.SaleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "invalid sale payload", err)
		return
	}

	h.respond(c, func(ctx context.Context) string {
		return h.ledger.CreateRecord(ctx, in)
	})
}

// DeleteRecord removes a sale. The body carries the values originally recorded.
func (h *LedgerHandler) DeleteRecord(c *gin.Context) {
	var in models.DeleteInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "invalid delete payload", err)
		return
	}
	in.DocID = c.Param("id")

	h.respond(c, func(ctx context.Context) string {
		return h.ledger.DeleteRecord(ctx, in)
	})
}

// DailyRecords reports the totals and entries of one day.
func (h *LedgerHandler) DailyRecords(c *gin.Context) {
	date := c.Param("date")
	h.respond(c, func(ctx context.Context) string {
		return h.ledger.FetchDailyRecords(ctx, date)
	})
}

// CustomerRecords reports the totals and entries of one customer.
func (h *LedgerHandler) CustomerRecords(c *gin.Context) {
	name := c.Param("name")
	h.respond(c, func(ctx context.Context) string {
		return h.ledger.FetchCustomerRecords(ctx, name)
	})
}

// SearchCustomers lists customers by name prefix.
func (h *LedgerHandler) SearchCustomers(c *gin.Context) {
	prefix := c.Query("prefix")
	h.respond(c, func(ctx context.Context) string {
		return h.ledger.SearchCustomers(ctx, prefix)
	})
}

// MonthlyTotals sums one calendar month.
func (h *LedgerHandler) MonthlyTotals(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		h.badRequest(c, "year must be numeric", err)
		return
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil {
		h.badRequest(c, "month must be numeric", err)
		return
	}

	h.respond(c, func(ctx context.Context) string {
		return h.ledger.MonthlyTotals(ctx, month, year)
	})
}

// DailyReport renders the report the scheduler sends, for the given or current day.
func (h *LedgerHandler) DailyReport(c *gin.Context) {
	if h.reporter == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "reporting disabled"})
		return
	}

	day := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("02-01-2006", raw)
		if err != nil {
			h.badRequest(c, "date must be DD-MM-YYYY", err)
			return
		}
		day = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	report, err := h.reporter.GenerateDailyReport(ctx, day)
	if err != nil {
		h.logger.Error("failed generating daily report", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}

// Stream pushes every ledger event to the client as server-sent events.
func (h *LedgerHandler) Stream(c *gin.Context) {
	sub := h.events.Subscribe()
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	done := c.Request.Context().Done()
	c.Stream(func(_ io.Writer) bool {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, view(ev))
			return true
		case <-done:
			return false
		}
	})
}

func (h *LedgerHandler) respond(c *gin.Context, issue func(ctx context.Context) string) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	sub := h.events.Subscribe()
	defer sub.Close()

	requestID := issue(ctx)
	events, err := sub.Await(ctx, requestID)
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		h.logger.Warn("request did not complete", zap.String("request_id", requestID), zap.Error(err))
		c.JSON(status, gin.H{"requestId": requestID, "error": err.Error()})
		return
	}

	resp := Response{RequestID: requestID, Events: make([]EventView, 0, len(events))}
	status := http.StatusOK
	for _, ev := range events {
		if ev.Error {
			status = http.StatusBadGateway
		}
		resp.Events = append(resp.Events, view(ev))
	}

	c.JSON(status, resp)
}

func (h *LedgerHandler) badRequest(c *gin.Context, msg string, err error) {
	h.logger.Warn(msg, zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
