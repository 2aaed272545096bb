package http

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/videoinsight-backend/internal/http/handlers"
	httpMW "github.com/yungbote/videoinsight-backend/internal/http/middleware"
	"github.com/yungbote/videoinsight-backend/internal/http/web"
	"github.com/yungbote/videoinsight-backend/internal/observability"
	"github.com/yungbote/videoinsight-backend/internal/platform/logger"
)

const metricsPath = "/metrics"

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string
	// WebUI serves the embedded browser client at "/" and "/static".
	WebUI bool

	VideoHandler  *httpH.VideoHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics, metricsPath))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	if cfg.Metrics != nil {
		r.GET(metricsPath, gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	// Pipeline
	if cfg.VideoHandler != nil {
		r.POST("/process_video", cfg.VideoHandler.ProcessVideo)
		r.POST("/query", cfg.VideoHandler.Query)
		r.GET("/video_details/:video_id", cfg.VideoHandler.VideoDetails)
	}

	// Browser client
	if cfg.WebUI {
		index := web.Index()
		r.GET("/", func(c *gin.Context) {
			c.Data(nethttp.StatusOK, "text/html; charset=utf-8", index)
		})
		r.StaticFS("/static", web.Assets())
	}

	return r
}
