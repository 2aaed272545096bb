package app

import (
	"github.com/gin-gonic/gin"

	httpapi "github.com/yungbote/videoinsight-backend/internal/http"
	httpH "github.com/yungbote/videoinsight-backend/internal/http/handlers"
	"github.com/yungbote/videoinsight-backend/internal/observability"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
)

type Handlers struct {
	Video  *httpH.VideoHandler
	Health *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, svc Services) Handlers {
	return Handlers{
		Video: httpH.NewVideoHandlerWithDeps(httpH.VideoHandlerDeps{
			Log:      log,
			Pipeline: svc.Pipeline,
			Details:  svc.Details,
		}),
		Health: httpH.NewHealthHandler(),
	}
}

func wireRouter(log *logger.Logger, cfg Config, h Handlers, metrics *observability.Metrics) *gin.Engine {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return httpapi.NewRouter(httpapi.RouterConfig{
		Log:           log,
		Metrics:       metrics,
		ServiceName:   serviceName,
		CORSOrigins:   cfg.HTTP.CORSOrigins,
		WebUI:         cfg.HTTP.WebUIEnabled,
		VideoHandler:  h.Video,
		HealthHandler: h.Health,
	})
}
