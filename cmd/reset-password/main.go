package main

import (
	"flag"
	"log"

	"go-bookstore-pos/internal/repository"
	"go-bookstore-pos/pkg/config"
	"go-bookstore-pos/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	username := flag.String("username", "owner", "account to reset")
	newPassword := flag.String("password", "owner", "new password")
	flag.Parse()

	if len(*newPassword) < 4 {
		log.Fatalf("❌ Password minimal 4 karakter")
	}

	// 1. Load Env
	cfg, err := config.Load("reset-password")
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// 2. Setup Database
	db, err := database.Open(&cfg.DB, zap.NewNop())
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer database.Close(db)

	// 3. Find user
	users := repository.NewUserRepo(db)
	user, err := users.FindByUsername(*username)
	if err != nil {
		log.Fatalf("❌ User %s not found in database: %v", *username, err)
	}

	// 4. Hash new password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*newPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("❌ Failed to hash password: %v", err)
	}

	// 5. Update, and end any open session
	if err := users.UpdatePassword(user.UserID, string(hashedPassword)); err != nil {
		log.Fatalf("❌ Failed to update password in DB: %v", err)
	}
	if err := db.Model(user).Update("token_version", uuid.NewString()).Error; err != nil {
		log.Fatalf("❌ Failed to revoke session: %v", err)
	}

	log.Printf("✅ Success! Password for %s has been reset", *username)
}
