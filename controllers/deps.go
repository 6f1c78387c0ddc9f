package controllers

import (
	"salonreach-backend/services"
)

// Automation collaborators the HTTP layer needs. Wired once from main;
// controllers otherwise talk to the database directly via config.DB.
var (
	tracker      *services.Tracker
	attemptStore services.AttemptStore
)

func InitAutomation(t *services.Tracker, attempts services.AttemptStore) {
	tracker = t
	attemptStore = attempts
}
