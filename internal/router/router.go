package router

import (
	"time"

	"blendcaja/internal/config"
	"blendcaja/internal/handler"
	"blendcaja/internal/middleware"
	"blendcaja/internal/repository"
	"blendcaja/internal/service"
	"blendcaja/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(cfg.RateLimit, time.Minute))

	// ── Repositories ─────────────────────────────────────────────────────────
	cajaRepo := repository.NewCajaRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	// The closing report is rendered by the worker pool.
	dispatcher := worker.NewDispatcher(rdb)
	cajaSvc := service.NewCajaService(cajaRepo, cfg.ReglasCaja(), dispatcher)

	// ── Handlers ─────────────────────────────────────────────────────────────
	cajaH := handler.NewCajaHandler(cajaSvc, cfg.PuntoDeVenta)
	dlqH := handler.NewDLQHandler(worker.NewDLQ(rdb))

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	Caja(v1, cajaH)
	Admin(v1, dlqH)

	// Swagger UI, only outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}

// Caja registers the /caja routes on an authenticated group.
// Roles: cajero, supervisor, administrador, declared per endpoint
func Caja(v1 *gin.RouterGroup, cajaH *handler.CajaHandler) {
	todos := middleware.RequireRole(middleware.RolCajero, middleware.RolSupervisor, middleware.RolAdministrador)
	supervision := middleware.RequireRole(middleware.RolSupervisor, middleware.RolAdministrador)

	caja := v1.Group("/caja")
	{
		caja.GET("/estado", todos, cajaH.Estado)
		caja.POST("/abrir", todos, cajaH.Abrir)
		caja.POST("/movimientos", todos, cajaH.RegistrarMovimiento)
		caja.POST("/cerrar", todos, cajaH.Cerrar)
		caja.GET("/:id/reporte", todos, cajaH.ObtenerReporte)

		caja.GET("/historial", supervision, cajaH.Historial)
		caja.GET("/historial/export", supervision, cajaH.ExportarHistorial)
		caja.GET("/historial/:id", todos, cajaH.DetalleHistorial)
	}
}

// Admin registers operator endpoints. Only administradores reach them.
func Admin(v1 *gin.RouterGroup, dlqH *handler.DLQHandler) {
	admin := v1.Group("/admin", middleware.RequireRole(middleware.RolAdministrador))
	{
		admin.GET("/dlq", dlqH.Resumen)
		admin.GET("/dlq/:cola", dlqH.Listar)
		admin.POST("/dlq/:cola/reencolar", dlqH.Reencolar)
	}
}
