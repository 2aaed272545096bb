package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/videoinsight-backend/internal/http/middleware"
	"github.com/yungbote/videoinsight-backend/internal/http/response"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
	"github.com/yungbote/videoinsight-backend/internal/services"
)

type VideoHandler struct {
	log      *logger.Logger
	pipeline services.PipelineService
	details  services.VideoDetailsService
}

type VideoHandlerDeps struct {
	Log      *logger.Logger
	Pipeline services.PipelineService
	Details  services.VideoDetailsService
}

func NewVideoHandlerWithDeps(deps VideoHandlerDeps) *VideoHandler {
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	return &VideoHandler{
		log:      log.With("handler", "VideoHandler"),
		pipeline: deps.Pipeline,
		details:  deps.Details,
	}
}

type processVideoRequest struct {
	YoutubeURL string `json:"youtube_url"`
}

type processVideoResponse struct {
	VideoID       string   `json:"video_id"`
	Title         string   `json:"title"`
	Status        string   `json:"status"`
	Message       string   `json:"message"`
	SummaryStatus string   `json:"summary_status"`
	Warnings      []string `json:"warnings,omitempty"`
}

type queryRequest struct {
	VideoID string `json:"video_id"`
	Query   string `json:"query"`
}

type queryResponse struct {
	Response string `json:"response"`
	VideoID  string `json:"video_id"`
}

// POST /process_video
func (h *VideoHandler) ProcessVideo(c *gin.Context) {
	var req processVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.YoutubeURL) == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("invalid YouTube URL"))
		return
	}

	res, err := h.pipeline.Process(c.Request.Context(), req.YoutubeURL)
	if res != nil && res.Run != nil {
		middleware.SetVideoID(c, res.Run.VideoID)
	}
	if err != nil {
		_ = c.Error(err)
		response.RespondFailure(c, err)
		return
	}

	response.RespondOK(c, processVideoResponse{
		VideoID:       res.VideoID,
		Title:         res.Title,
		Status:        "processed",
		Message:       "Successfully processed video: " + res.Title,
		SummaryStatus: string(res.SummaryStatus),
		Warnings:      res.Warnings,
	})
}

// POST /query
func (h *VideoHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.VideoID) == "" || strings.TrimSpace(req.Query) == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("missing video_id or query"))
		return
	}
	middleware.SetVideoID(c, req.VideoID)

	res, err := h.pipeline.Query(c.Request.Context(), req.VideoID, req.Query)
	if err != nil {
		_ = c.Error(err)
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, queryResponse{Response: res.Response, VideoID: res.VideoID})
}

// GET /video_details/:video_id
func (h *VideoHandler) VideoDetails(c *gin.Context) {
	videoID := strings.TrimSpace(c.Param("video_id"))
	middleware.SetVideoID(c, videoID)

	meta, err := h.details.Get(c.Request.Context(), videoID)
	if err != nil {
		_ = c.Error(err)
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, meta)
}
