package api

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"fipetracker/server/config"
)

func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader, "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cc.AllowAllOrigins = true
			return cc
		}
	}
	cc.AllowOrigins = origins
	return cc
}

// SetupRoutes registers the middleware and routes on router. Client
// addresses come from X-Forwarded-For only when the peer is one of
// cfg.Server.TrustedProxies.
func SetupRoutes(router *gin.Engine, handler *Handler, cfg *config.Config) error {
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}

	cc := corsConfig(cfg.Server.CORSOrigins)
	cc.AllowHeaders = append(cc.AllowHeaders, cfg.Auth.Header)

	router.Use(RequestID(), RequestLogger(handler.logger), cors.New(cc))

	router.GET("/api/health", handler.Health)

	api := router.Group("/api")
	api.Use(
		APIKeyAuth(cfg.Auth.Header, cfg.Auth.APIKeys),
		RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	)
	{
		api.GET("/brands", handler.GetBrands)
		api.GET("/brands/:brand_id/options", handler.GetOptions)
		api.GET("/brands/:brand_id/options/filter", handler.FilterOptions)
		api.GET("/models/:brand_id", handler.GetModels)
		api.GET("/years/:model_id", handler.GetYears)
		api.GET("/months", handler.GetMonths)
		api.GET("/default-car", handler.GetDefaultCar)
		api.GET("/vehicles/:year_id", handler.GetVehicle)
		api.POST("/chart-data", handler.GetChartData)
		api.POST("/compare", handler.Compare)

		api.POST("/sessions", handler.CreateSession)
		api.GET("/sessions/:id", handler.GetSession)
		api.DELETE("/sessions/:id", handler.DeleteSession)
		api.POST("/sessions/:id/vehicles", handler.AddSessionVehicle)
		api.DELETE("/sessions/:id/vehicles/:year_id", handler.RemoveSessionVehicle)

		api.GET("/analytics/brand-stats", handler.GetBrandStatistics)
		api.GET("/analytics/cheapest", handler.GetCheapest)
		api.GET("/analytics/distribution", handler.GetPriceDistribution)
		api.GET("/analytics/fuel-types", handler.GetFuelTypes)
		api.GET("/analytics/market-leaders", handler.GetMarketLeaders)
		api.GET("/search", handler.Search)
	}
	return nil
}
