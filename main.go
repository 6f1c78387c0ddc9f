package main

import (
	"fmt"
	"log"
	"os"
	"salonreach-backend/config"
	"salonreach-backend/controllers"
	"salonreach-backend/models"
	"salonreach-backend/repository"
	"salonreach-backend/routes"
	"salonreach-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func init() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	config.InitLogger()
	config.ConnectDB()

	config.DB.AutoMigrate(
		&models.User{},
		&models.Salon{},
		&models.Customer{},
		&models.Invoice{},
		&models.AutomationRule{},
		&models.Campaign{},
		&models.CampaignLink{},
		&models.ContactAttempt{},
		&models.CooldownRecord{},
	)
	if err := config.EnsureIndexes(); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}
}

func main() {
	settings := config.LoadAutomationSettings()

	customers := repository.NewCustomerRepository(config.DB)
	rules := repository.NewRuleRepository(config.DB)
	attempts := repository.NewAttemptRepository(config.DB)
	cooldowns := repository.NewCooldownRepository(config.DB)
	recorder := repository.NewDispatchRecorder(config.DB)

	gateway := services.NewTwilioGateway()
	dispatcher := services.NewDispatcher(gateway, rules, attempts, recorder, customers, settings, config.Log)
	engine := services.NewRuleEngine(customers, nil, cooldowns, settings)
	queue := services.NewQueueProcessor(attempts, rules, customers, cooldowns, dispatcher, settings, config.Log)
	tracker := services.NewTracker(attempts, config.Log)

	scheduler := services.NewScheduler(engine, queue, tracker, dispatcher, rules, settings, config.Log)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	controllers.InitAutomation(tracker, attempts)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	r := routes.SetupRouter()
	printRoutes(r)
	r.Run(":" + port)
}

func printRoutes(r *gin.Engine) {
	routes := r.Routes()
	for _, route := range routes {
		fmt.Printf("%-6s %s\n", route.Method, route.Path)
	}
}
