package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lox/holdem-arena/internal/agent"
	"github.com/lox/holdem-arena/internal/arena"
	"github.com/lox/holdem-arena/internal/game"
)

// actionSubmission is the body of POST /api/agents/:id/action.
type actionSubmission struct {
	Action    string `json:"action"`
	Amount    int    `json:"amount"`
	Reasoning string `json:"reasoning"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleRegisterAgent registers a callback- or polling-mode agent.
// Websocket agents register by connecting to /ws instead.
func (s *Server) handleRegisterAgent(c *gin.Context) {
	var reg agent.Registration
	if err := c.ShouldBindJSON(&reg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid registration: " + err.Error()})
		return
	}
	info, err := s.registry.RegisterAgent(reg)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, agent.ErrMaxAgents) {
			status = http.StatusTooManyRequests
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (s *Server) handleListAgents(c *gin.Context) {
	agents := s.registry.ListAgents()
	c.JSON(http.StatusOK, gin.H{"agents": agents, "count": len(agents)})
}

func (s *Server) handleGetAgent(c *gin.Context) {
	info, err := s.registry.GetAgent(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

// handleUnregisterAgent removes an agent. Removal is idempotent, so retries
// and already-gone agents both get 204.
func (s *Server) handleUnregisterAgent(c *gin.Context) {
	s.registry.UnregisterAgent(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// handlePendingTurn serves the polling transport: agents poll until HasTurn
// flips, then answer through handleSubmitAction.
func (s *Server) handlePendingTurn(c *gin.Context) {
	snap, err := s.registry.PendingTurn(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleSubmitAction(c *gin.Context) {
	var sub actionSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid action: " + err.Error()})
		return
	}
	err := s.registry.SubmitDecision(c.Param("id"), sub.Action, sub.Amount, sub.Reasoning)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "accepted"})
	case errors.Is(err, agent.ErrUnknownAgent):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, agent.ErrNoPendingTurn), errors.Is(err, agent.ErrTurnResolved):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// handleArenaStart launches a run. The request body may carry a partial
// arena config; absent fields keep their configured values.
func (s *Server) handleArenaStart(c *gin.Context) {
	cfg := s.arena.Config()
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&cfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid config: " + err.Error()})
			return
		}
	}
	if err := s.arena.Reconfigure(cfg); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, arena.ErrAlreadyRunning) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if err := s.arena.Start(s.runContext()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, arena.ErrAlreadyRunning) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, s.arena.Status())
}

// handleArenaStop requests a graceful stop. Hands already dealt run to
// completion; repeat calls are no-ops.
func (s *Server) handleArenaStop(c *gin.Context) {
	s.arena.Stop()
	c.JSON(http.StatusAccepted, gin.H{"status": "stopping"})
}

func (s *Server) handleArenaStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.arena.Status())
}

// handleLeaderboard returns standings ordered by the sortBy query key
// (winRate, profit or hands; winRate when absent).
func (s *Server) handleLeaderboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"standings": s.arena.Leaderboard(c.Query("sortBy"))})
}

// handleSettlementTrail exposes the unsettled action records of one room in
// play order, for audits against submitted batch hashes.
func (s *Server) handleSettlementTrail(c *gin.Context) {
	room := c.Param("room")
	entries := s.settler.Store().Entries(room)
	if entries == nil {
		entries = []game.ActionRecord{}
	}
	c.JSON(http.StatusOK, gin.H{
		"room":    room,
		"pending": s.settler.Pending(room),
		"entries": entries,
	})
}
