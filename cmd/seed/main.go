package main

import (
	"log"
	"os"

	"taskhub/internal/database"
	"taskhub/internal/domain"
	"taskhub/internal/pkg/password"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "taskhub.db"
	}

	db, err := database.Connect(dsn)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}

	log.Println("Running AutoMigrate...")
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.RefreshToken{},
		&domain.Todo{},
	); err != nil {
		log.Fatal("AutoMigrate failed:", err)
	}

	admin := seedUser(db, "admin@taskhub.local", "admin12345", domain.RoleAdmin)
	demo := seedUser(db, "demo@taskhub.local", "demo12345", domain.RoleUser)

	seedTodos(db, demo.ID)

	log.Printf("Seed complete: admin=%d demo=%d", admin.ID, demo.ID)
}

func seedUser(db *gorm.DB, email, plain string, role domain.UserRole) *domain.User {
	var existing domain.User
	if err := db.Where("email = ?", email).First(&existing).Error; err == nil {
		log.Printf("user %s already exists, skipping", email)
		return &existing
	}

	hash, err := password.Hash(plain)
	if err != nil {
		log.Fatal("hash failed:", err)
	}

	u := &domain.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		Preferences:  domain.Preferences{"theme": "light"},
	}
	if err := db.Create(u).Error; err != nil {
		log.Fatal("seed user failed:", err)
	}
	log.Printf("created user %s (%s)", email, role)
	return u
}

func seedTodos(db *gorm.DB, userID int64) {
	var count int64
	db.Model(&domain.Todo{}).Where("user_id = ?", userID).Count(&count)
	if count > 0 {
		return
	}

	todos := []domain.Todo{
		{UserID: userID, Title: "Try out TaskHub", Status: domain.TodoPending},
		{UserID: userID, Title: "Invite the team", Description: "Share the signup link", Status: domain.TodoPending},
		{UserID: userID, Title: "Read the onboarding guide", Status: domain.TodoDone},
	}
	for i := range todos {
		if err := db.Create(&todos[i]).Error; err != nil {
			log.Fatal("seed todo failed:", err)
		}
	}
	log.Printf("created %d demo todos", len(todos))
}
