package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danmuck/gatewatch/internal/auth"
	"github.com/danmuck/gatewatch/internal/gateway"
	"github.com/danmuck/gatewatch/internal/orders"
	"github.com/danmuck/gatewatch/internal/protocol/frame"
)

const version = "0.1.0"

var errUnavailable = errors.New("component not configured")

type commandRequest struct {
	Tag  string `json:"tag" binding:"required"`
	Body string `json:"body"`
}

func (s *Server) RegisterRoutes() {
	r := s.router
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": version,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/heartbeat", func(c *gin.Context) {
		if s.deps.Monitor == nil {
			unavailable(c)
			return
		}
		c.JSON(http.StatusOK, s.deps.Monitor.Snapshot())
	})

	r.GET("/orders", s.listOrders)

	r.GET("/orders/:id", func(c *gin.Context) {
		if s.deps.Engine == nil {
			unavailable(c)
			return
		}
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "order id must be an unsigned integer"})
			return
		}
		o, ok := s.deps.Engine.Order(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusOK, o)
	})

	r.GET("/orders/token/:token", func(c *gin.Context) {
		if s.deps.Engine == nil {
			unavailable(c)
			return
		}
		o, ok := s.deps.Engine.OrderByToken(c.Param("token"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusOK, o)
	})

	r.GET("/pending", func(c *gin.Context) {
		if s.deps.Engine == nil {
			unavailable(c)
			return
		}
		pending := s.deps.Engine.Pending()
		c.JSON(http.StatusOK, gin.H{"count": len(pending), "pending": pending})
	})

	r.GET("/stats", func(c *gin.Context) {
		body := gin.H{}
		if s.deps.Engine != nil {
			body["orders"] = s.deps.Engine.Stats()
		}
		if s.deps.Reader != nil {
			body["reader"] = s.deps.Reader.Stats()
		}
		if s.deps.Monitor != nil {
			body["liveness"] = s.deps.Monitor.Status()
		}
		c.JSON(http.StatusOK, body)
	})

	r.GET("/blocks", func(c *gin.Context) {
		if s.deps.Tally == nil {
			unavailable(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{"blocks": s.deps.Tally.Snapshot()})
	})

	if s.deps.CommandAuth != nil {
		r.POST("/commands", auth.Middleware(s.deps.CommandAuth), s.sendCommand)
	} else {
		r.POST("/commands", s.sendCommand)
	}
}

// listOrders returns tracked orders oldest first. status filters by order
// status name; limit keeps only the newest n.
func (s *Server) listOrders(c *gin.Context) {
	if s.deps.Engine == nil {
		unavailable(c)
		return
	}
	list := s.deps.Engine.Orders()
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		filtered := list[:0]
		for _, o := range list {
			if strings.EqualFold(o.Status.String(), status) {
				filtered = append(filtered, o)
			}
		}
		list = filtered
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		if n < len(list) {
			list = list[len(list)-n:]
		}
	}
	if list == nil {
		list = []orders.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(list), "orders": list})
}

func (s *Server) sendCommand(c *gin.Context) {
	if s.deps.Commander == nil {
		unavailable(c)
		return
	}
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Tag) != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tag must be one of S, G, R"})
		return
	}
	cmd := frame.Command{Tag: req.Tag[0], Body: req.Body}
	if cmd.Tag == frame.CommandRewind {
		if _, err := cmd.RewindSequence(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	seq, err := s.deps.Commander.Send(cmd)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, gateway.ErrNoConnection):
			status = http.StatusServiceUnavailable
		case !isCommandError(err):
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent", "tag": req.Tag, "sequence": seq})
}

func isCommandError(err error) bool {
	return errors.Is(err, frame.ErrUnknownCommand) ||
		errors.Is(err, frame.ErrCommandBodyLarge) ||
		errors.Is(err, frame.ErrCommandNotASCII) ||
		errors.Is(err, frame.ErrCommandBody)
}

func unavailable(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": errUnavailable.Error()})
}
