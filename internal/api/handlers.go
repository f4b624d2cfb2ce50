package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"decter-engine/internal/confirm"
	"decter-engine/internal/state"
)

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	status := s.engine.Status()

	persistence := "healthy"
	if status.Degraded {
		persistence = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"persistence": persistence,
		"timestamp":   time.Now().Format(time.RFC3339),
	})
}

// handleStatus returns the full engine snapshot
func (s *Server) handleStatus(c *gin.Context) {
	status := s.engine.Status()
	if status.State == nil {
		errorResponse(c, http.StatusServiceUnavailable, "engine not started")
		return
	}
	successResponse(c, status)
}

func (s *Server) handleStartTrading(c *gin.Context) {
	s.engine.StartTrading()
	successResponse(c, gin.H{"trading": "started"})
}

func (s *Server) handleStopTrading(c *gin.Context) {
	s.engine.StopTrading()
	successResponse(c, gin.H{"trading": "stopped"})
}

// handleResume clears an emergency halt after operator review
func (s *Server) handleResume(c *gin.Context) {
	status := s.engine.Status()
	if status.State == nil || status.State.Phase != state.PhaseEmergencyHalt {
		errorResponse(c, http.StatusConflict, "engine is not halted")
		return
	}
	s.engine.Resume()
	successResponse(c, gin.H{"resumed": true})
}

func (s *Server) handleTriggerAnalysis(c *gin.Context) {
	s.engine.TriggerAnalysis()
	successResponse(c, gin.H{"analysis": "triggered"})
}

func (s *Server) handleNewSession(c *gin.Context) {
	s.engine.NewSession()
	successResponse(c, gin.H{"session": "reset"})
}

// handleGetProposal returns the proposal awaiting confirmation, if any
func (s *Server) handleGetProposal(c *gin.Context) {
	pending := s.gate.Pending()
	if pending == nil {
		errorResponse(c, http.StatusNotFound, "no pending proposal")
		return
	}
	successResponse(c, pending)
}

type proposalResponse struct {
	Accept bool `json:"accept"`
}

// handleRespondProposal applies an operator decision to the pending proposal
func (s *Server) handleRespondProposal(c *gin.Context) {
	proposalID := c.Param("id")

	var body proposalResponse
	if err := c.ShouldBindJSON(&body); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	err := s.gate.Resolve(proposalID, body.Accept)
	switch {
	case err == nil:
		decision := "rejected"
		if body.Accept {
			decision = "accepted"
		}
		successResponse(c, gin.H{"proposal_id": proposalID, "decision": decision})
	case errors.Is(err, confirm.ErrNoPendingProposal):
		errorResponse(c, http.StatusNotFound, "no pending proposal")
	case errors.Is(err, confirm.ErrUnknownProposal):
		errorResponse(c, http.StatusNotFound, "unknown proposal: "+proposalID)
	case errors.Is(err, confirm.ErrProposalResolved):
		errorResponse(c, http.StatusConflict, "proposal already resolved")
	default:
		errorResponse(c, http.StatusInternalServerError, err.Error())
	}
}

// handleTradeHistory returns recent settled trades, newest first
func (s *Server) handleTradeHistory(c *gin.Context) {
	limit := parseLimit(c, 50)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	trades, err := s.store.RecentTrades(ctx, limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to load trade history")
		return
	}
	successResponse(c, gin.H{"trades": trades, "count": len(trades)})
}

// handleModeSwitchHistory returns recent mode transitions, newest first
func (s *Server) handleModeSwitchHistory(c *gin.Context) {
	limit := parseLimit(c, 20)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	switches, err := s.store.ModeSwitches(ctx, limit)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to load mode switch history")
		return
	}
	successResponse(c, gin.H{"switches": switches, "count": len(switches)})
}

func parseLimit(c *gin.Context, def int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 500 {
		return def
	}
	return n
}
