package http

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/dkeye/Babel/internal/adapters/signal"
	"github.com/dkeye/Babel/internal/app/orch"
	"github.com/dkeye/Babel/internal/config"
	"github.com/dkeye/Babel/internal/domain"
	"github.com/dkeye/Babel/internal/langdir"
	"github.com/dkeye/Babel/internal/metrics"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const clientTokenKey = "ct"

type Deps struct {
	Orch      *orch.Orchestrator
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Languages *langdir.Directory
}

type voiceOption struct {
	Gender string `json:"gender"`
	Label  string `json:"label"`
}

var voiceOptions = []voiceOption{
	{Gender: "M", Label: "Male"},
	{Gender: "F", Label: "Female"},
}

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

// ClientTokenMiddleware keeps a stable browser token in the session cookie.
// It only labels connections in logs; member ids are per connection.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// AdminTokenMiddleware requires the bearer token on admin routes.
func AdminTokenMiddleware(token string) gin.HandlerFunc {
	want := "Bearer " + token
	return func(c *gin.Context) {
		if subtle.ConstantTimeCompare([]byte(c.GetHeader("Authorization")), []byte(want)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Server.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Server.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("BabelSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.Server.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.Server.StaticPath + "/index.html")
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if deps.Gatherer != nil {
		r.GET(cfg.Telemetry.MetricsPath, gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.Server.StaticPath).Msg("router setup")

	langs := deps.Languages
	if langs == nil {
		langs = langdir.Default()
	}
	ctrl := signal.NewSignalWSController(deps.Orch, deps.Metrics, signal.Options{
		ReadLimit:       cfg.Server.ReadLimit,
		PingPeriod:      cfg.Server.PingPeriod,
		SendBuffer:      cfg.Relay.SendBuffer,
		EventsPerSecond: cfg.Relay.EventsPerSecond,
		EventBurst:      cfg.Relay.EventBurst,
		MaxTextLen:      cfg.Relay.MaxTextLen,
	})
	ctrl.Languages = langs

	api := r.Group("/api")

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("client", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})
	api.GET("/languages", func(c *gin.Context) {
		c.JSON(http.StatusOK, langs.All())
	})
	api.GET("/voices", func(c *gin.Context) {
		c.JSON(http.StatusOK, voiceOptions)
	})
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.Orch.Rooms.Rooms())
	})

	if cfg.Server.AdminToken != "" {
		admin := api.Group("/admin", AdminTokenMiddleware(cfg.Server.AdminToken))
		admin.DELETE("/rooms/:room", func(c *gin.Context) {
			room := domain.RoomKey(c.Param("room"))
			if !deps.Orch.Rooms.HasRoom(room) {
				c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
				return
			}
			n := deps.Orch.EvictRoom(room)
			log.Info().Str("module", "adapters.http").Str("room", string(room)).Int("members", n).Msg("admin evicted room")
			c.JSON(http.StatusOK, gin.H{"room": room, "evicted": n})
		})
	}

	return r
}
