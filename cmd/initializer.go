package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"firebase.google.com/go/auth"
	"github.com/redis/go-redis/v9"

	"debateBack/internal/config"
	"debateBack/internal/handlers"
	"debateBack/internal/repositories"
	"debateBack/internal/services"
)

type application struct {
	errorLog *log.Logger
	infoLog  *log.Logger

	authClient *auth.Client

	purchaseHandler *handlers.PurchaseHandler
	appleWebhook    *handlers.AppleWebhookHandler
	googleRTDN      *handlers.GoogleRTDNHandler
	accountHandler  *handlers.AccountHandler
}

func initializeApp(ctx context.Context, cfg config.Config, fbApp *firebase.App, fs *firestore.Client, rdb *redis.Client, errorLog, infoLog *log.Logger) (*application, error) {
	authClient, err := fbApp.Auth(ctx)
	if err != nil {
		return nil, err
	}

	// Repositories
	entitlementRepo := &repositories.EntitlementRepository{Client: fs}
	trialRepo := &repositories.TrialHistoryRepository{Client: fs}
	userDataRepo := &repositories.UserDataRepository{Client: fs}
	identityRepo := &repositories.FirebaseIdentityRepository{Auth: authClient}

	// Services
	var apple services.AppleVerifier
	if cfg.AppleSharedSecret != "" {
		appleSvc, err := services.NewAppleStoreService(services.AppleStoreConfig{
			SharedSecret:     cfg.AppleSharedSecret,
			VerifyURL:        cfg.Apple.VerifyURL,
			SandboxVerifyURL: cfg.Apple.SandboxVerifyURL,
		})
		if err != nil {
			return nil, err
		}
		apple = appleSvc
	} else {
		infoLog.Printf("APPLE_SHARED_SECRET not set, apple verification disabled")
	}

	var google services.GoogleVerifier
	if cfg.GoogleServiceAccountJSON != "" {
		googleSvc, err := services.NewGooglePlayService(services.GooglePlayConfig{
			PackageName:        cfg.Google.PackageName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		})
		if err != nil {
			return nil, err
		}
		google = googleSvc
	} else {
		infoLog.Printf("GOOGLE_PLAY_SERVICE_ACCOUNT_JSON not set, google verification disabled")
	}

	trialGuard := &services.TrialGuardService{Repo: trialRepo, Salt: cfg.IdentityHashSalt}
	purchaseService := &services.PurchaseService{
		Apple:        apple,
		Google:       google,
		Entitlements: entitlementRepo,
		TrialGuard:   trialGuard,
	}
	accountService := &services.AccountService{Data: userDataRepo, Auth: identityRepo}

	keySource := services.NewAppleKeySource("", &http.Client{Timeout: 15 * time.Second})
	notificationService, err := services.NewAppleNotificationService(cfg.Apple.BundleID, keySource,
		slog.New(slog.NewTextHandler(os.Stdout, nil)))
	if err != nil {
		return nil, err
	}

	return &application{
		errorLog:   errorLog,
		infoLog:    infoLog,
		authClient: authClient,
		purchaseHandler: &handlers.PurchaseHandler{
			Service: purchaseService,
		},
		appleWebhook: &handlers.AppleWebhookHandler{
			Notifications: notificationService,
			Entitlements:  entitlementRepo,
			Replay:        &services.ReplayGuard{RDB: rdb},
		},
		googleRTDN: &handlers.GoogleRTDNHandler{
			Google:       google,
			Entitlements: entitlementRepo,
		},
		accountHandler: &handlers.AccountHandler{
			Service: accountService,
		},
	}, nil
}
