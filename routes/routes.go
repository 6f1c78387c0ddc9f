package routes

import (
	"salonreach-backend/config"
	"salonreach-backend/controllers"
	"salonreach-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter() *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:3000",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.Use(config.PerformanceLogger())

	auth := r.Group("/auth")
	{
		auth.POST("/register", controllers.Register)
		auth.POST("/login", controllers.Login)

		auth.Use(utils.AuthMiddleware())
		auth.GET("/me", controllers.Me)
	}

	// Gateway callbacks and pipeline signals are not JWT-authenticated;
	// they are expected to be protected at the network layer.
	hooks := r.Group("/hooks")
	{
		hooks.POST("/twilio/status", controllers.TwilioStatusCallback)
		hooks.POST("/returns", controllers.MarkReturn)
	}

	api := r.Group("/api")
	api.Use(utils.AuthMiddleware())
	{
		// Customer routes
		customers := api.Group("/customers")
		{
			customers.POST("", controllers.CreateCustomer)
			customers.GET("", controllers.GetCustomers)
			customers.GET("/:id", controllers.GetCustomer)
			customers.PUT("/:id", controllers.UpdateCustomer)
			customers.PUT("/:id/blacklist", controllers.SetCustomerBlacklist)
			customers.DELETE("/:id", controllers.DeleteCustomer)
		}

		// Automation rule routes
		rules := api.Group("/rules")
		{
			rules.POST("", controllers.CreateRule)
			rules.GET("", controllers.GetRules)
			rules.GET("/:id", controllers.GetRule)
			rules.PUT("/:id", controllers.UpdateRule)
			rules.PUT("/:id/enabled", controllers.SetRuleEnabled)
			rules.GET("/:id/last-run", controllers.GetRuleLastRun)
		}

		// Manual inclusion routes
		inclusions := api.Group("/inclusions")
		{
			inclusions.POST("", controllers.EnqueueInclusion)
			inclusions.GET("", controllers.GetInclusions)
			inclusions.DELETE("/:id", controllers.CancelInclusion)
		}

		// Invoice routes (visit recording doubles as return detection)
		invoices := api.Group("/invoices")
		{
			invoices.POST("", controllers.CreateInvoice)
			invoices.GET("", controllers.GetInvoices)
		}

		// Automation stats
		api.GET("/stats/automation", controllers.GetAutomationStats)
	}

	return r
}
