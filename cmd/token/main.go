// Команда token выпускает токен доступа для локальной разработки:
//
//	go run ./cmd/token -user 3f0c...
package main

import (
	"flag"
	"fmt"
	"os"

	"studyTracker/internal/auth"
	"studyTracker/internal/config"

	"github.com/google/uuid"
)

func main() {
	configPath := flag.String("config", "config.yml", "путь к файлу конфигурации")
	user := flag.String("user", "", "id пользователя, по умолчанию случайный")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	userID := uuid.New()
	if *user != "" {
		if userID, err = uuid.Parse(*user); err != nil {
			fmt.Fprintf(os.Stderr, "неверный id пользователя: %v\n", err)
			os.Exit(1)
		}
	}

	tokens := auth.NewJWTManager(auth.JWTConfig{
		SecretKey:           cfg.Auth.Secret,
		AccessTokenDuration: cfg.Auth.TokenTTL,
		Issuer:              cfg.Auth.Issuer,
	})
	token, err := tokens.GenerateAccessToken(userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ошибка выпуска токена: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("user_id: %s\ntoken:   %s\n", userID, token)
}
