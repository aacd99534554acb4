package api

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"cardarb/internal/types"
)

type sseEvent struct {
	name    string
	payload interface{}
}

// streamHandler pushes engine state over Server-Sent Events: an initial
// snapshot on connect, then opportunities, market health, metrics and
// executions as they happen, plus periodic heartbeats. Slow consumers drop
// events rather than block the evaluation loop.
func (s *Server) streamHandler(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ch := make(chan sseEvent, 64)
	send := func(name string, payload interface{}) {
		select {
		case ch <- sseEvent{name: name, payload: payload}:
		default:
		}
	}

	cancelOpps := s.orch.Opportunities.Subscribe(func(opps []types.Opportunity) {
		send("opportunities", opps)
		send("metrics", s.orch.GetMetrics())
	})
	defer cancelOpps()
	cancelHealth := s.orch.MarketHealth.Subscribe(func(health []types.MarketHealth) {
		send("marketHealth", health)
		send("metrics", s.orch.GetMetrics())
	})
	defer cancelHealth()
	cancelExecs := s.orch.Executions.Subscribe(func(exec types.Execution) {
		send("execution", exec)
		send("metrics", s.orch.GetMetrics())
	})
	defer cancelExecs()

	send("opportunities", s.orch.GetOpportunities())
	send("marketHealth", s.orch.GetMarketHealth())
	send("metrics", s.orch.GetMetrics())

	heartbeat := time.NewTicker(time.Duration(s.cfg.SSEHeartbeatMs) * time.Millisecond)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case event := <-ch:
			c.SSEvent(event.name, event.payload)
			return true
		case <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"timestamp": time.Now().UnixMilli()})
			return true
		}
	})
}
