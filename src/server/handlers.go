package server

import (
	"context"
	"net/http"
	"time"

	"mtm-hub/src/aggregator"
	"mtm-hub/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Dashboard API
// -----------------------------------------------------------------------------

func (s *HubServer) getMTM(c *gin.Context) {
	resp, err := s.agg.GetMTM(c.Request.Context(), c.Query("UserID"))
	if err != nil {
		c.JSON(statusFor(err), aggregator.ErrorResponse(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// -----------------------------------------------------------------------------

func (s *HubServer) getHistory(c *gin.Context) {
	points, err := s.agg.History(c.Request.Context(), c.Query("UserID"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{
			"status":  models.StatusError,
			"error":   aggregator.ErrorResponse(err).Error,
			"history": []models.MHistoryPoint{},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  models.StatusSuccess,
		"history": points,
	})
}

// -----------------------------------------------------------------------------

func (s *HubServer) getUsers(c *gin.Context) {
	c.JSON(http.StatusOK, s.agg.Accounts.File())
}

// -----------------------------------------------------------------------------

func (s *HubServer) getStatus(c *gin.Context) {
	body := gin.H{
		"name":            s.Config.Name,
		"status":          "running",
		"phase":           s.agg.Phase().String(),
		"time":            s.agg.Clock.Now().Format(time.RFC3339),
		"last_reset_date": s.agg.State.LastResetDate(),
		"accounts":        len(s.agg.Accounts.Accounts()),
		"ws_clients":      s.clientCount(),
	}
	if s.poller != nil {
		body["poller"] = s.poller.Stats()
	}
	c.JSON(http.StatusOK, body)
}

// -----------------------------------------------------------------------------

func (s *HubServer) getConfig(c *gin.Context) {
	file := s.agg.Accounts.File()
	c.JSON(http.StatusOK, gin.H{
		"refresh_interval_ms":   s.Config.Poller.RefreshIntervalMs,
		"cache_ttl_ms":          s.Config.Cache.TTLMillis,
		"cache_type":            s.Config.Cache.Type,
		"poller_enabled":        s.poller != nil,
		"poll_interval_seconds": s.Config.Poller.IntervalSeconds,
		"opening_mtm":           file.OpeningTime,
		"start_time":            file.StartTime,
		"chart_start_time":      file.ChartStartTime,
	})
}

// -----------------------------------------------------------------------------

func (s *HubServer) getDBDebug(c *gin.Context) {
	snaps, err := s.agg.Snapshots()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": models.StatusError, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          models.StatusSuccess,
		"db_type":         s.Config.Storage.DBType,
		"last_reset_date": s.agg.State.LastResetDate(),
		"accounts":        snaps,
	})
}

// -----------------------------------------------------------------------------

func (s *HubServer) getMinuteMarkers(c *gin.Context) {
	userID := c.Query("UserID")
	markers, err := s.agg.MinuteMarkers(c.Request.Context(), userID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"status": models.StatusError, "error": aggregator.ErrorResponse(err).Error})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  models.StatusSuccess,
		"user_id": userID,
		"markers": markers,
		"count":   len(markers),
	})
}

// -----------------------------------------------------------------------------
// Admin
// -----------------------------------------------------------------------------

func (s *HubServer) resetAccount(c *gin.Context) {
	userID := c.Param("user_id")
	if err := s.agg.ResetAccount(c.Request.Context(), userID); err != nil {
		c.JSON(statusFor(err), gin.H{"status": models.StatusError, "error": aggregator.ErrorResponse(err).Error})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.StatusSuccess, "message": "Reset stats for " + userID})
}

// -----------------------------------------------------------------------------

func (s *HubServer) resetAll(c *gin.Context) {
	if err := s.agg.ResetAll(c.Request.Context()); err != nil {
		c.JSON(statusFor(err), gin.H{"status": models.StatusError, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.StatusSuccess, "message": "Reset stats for all users"})
}

// -----------------------------------------------------------------------------

func (s *HubServer) triggerBackgroundFetch(c *gin.Context) {
	if s.poller == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": models.StatusError, "error": "background poller is disabled"})
		return
	}
	go func() {
		report := s.poller.RunOnce(context.Background())
		s.Logger.Info("Manual background fetch: %d account(s), %d failure(s)", report.Accounts, report.Failures)
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": models.StatusSuccess, "message": "Background fetch triggered"})
}

// -----------------------------------------------------------------------------
// Ops
// -----------------------------------------------------------------------------

func (s *HubServer) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": s.clientCount(),
	})
}
