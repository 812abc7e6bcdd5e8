package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"account-security-plane/internal/audit"
	auditrepo "account-security-plane/internal/audit/repository"
	"account-security-plane/internal/auth"
	authhandler "account-security-plane/internal/auth/handler"
	"account-security-plane/internal/config"
	"account-security-plane/internal/db"
	devicerepo "account-security-plane/internal/device/repository"
	identityrepo "account-security-plane/internal/identity/repository"
	"account-security-plane/internal/loginattempt"
	"account-security-plane/internal/mfa"
	mfahandler "account-security-plane/internal/mfa/handler"
	mfarepo "account-security-plane/internal/mfa/repository"
	"account-security-plane/internal/mfa/sender"
	"account-security-plane/internal/mfa/totp"
	passwordhandler "account-security-plane/internal/password/handler"
	"account-security-plane/internal/posture"
	posturehandler "account-security-plane/internal/posture/handler"
	"account-security-plane/internal/revocation"
	"account-security-plane/internal/security"
	"account-security-plane/internal/server"
	"account-security-plane/internal/session"
	sessionhandler "account-security-plane/internal/session/handler"
	sessionrepo "account-security-plane/internal/session/repository"
	"account-security-plane/internal/telemetry"
	teleotel "account-security-plane/internal/telemetry/otel"
	"account-security-plane/internal/telemetry/producer"
	userrepo "account-security-plane/internal/user/repository"
)

const backupCodeCount = 10

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "account-security-plane").Logger()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	privKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	pubKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	tokens := security.NewTokenProvider(privKey, pubKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())
	hasher := security.NewHasher(cfg.BcryptCost)

	users := userrepo.NewPostgresRepository(conn)
	identities := identityrepo.NewPostgresRepository(conn)
	sessions := sessionrepo.NewPostgresRepository(conn)
	devices := devicerepo.NewPostgresRepository(conn)
	factors := mfarepo.NewPostgresRepository(conn)
	attempts := loginattempt.NewPostgresRepository(conn)

	revoked := revocation.NewMemoryStore()
	auditor := audit.NewLogger(auditrepo.NewPostgresRepository(conn), nil)

	totpIssuer := totp.NewIssuer(cfg.TOTPIssuer)
	var challenges mfa.ChallengeSender
	var dev *sender.DevSender
	if cfg.MFACodeReturnToClient {
		dev = sender.NewDevSender()
		challenges = dev
		logger.Warn().Msg("dev challenge mode enabled; SMS/email codes are echoed to the client")
	} else {
		challenges = sender.NewSMSLocalClient(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender)
	}
	machine := mfa.NewMachine(totpIssuer, totpIssuer, challenges, mfa.NewRepositoryFactorStore(factors), backupCodeCount)

	authSvc := auth.NewService(users, identities, sessions, devices, factors, attempts,
		hasher, tokens, revoked, totpIssuer, auditor, cfg.RefreshTTL(), cfg.FailedWindow())
	registry := session.NewRegistry(sessions, revoked)
	postureSvc := posture.NewService(users, identities, factors, sessions)

	var emitter telemetry.EventEmitter
	kafkaProducer, err := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if err != nil {
		log.Fatalf("kafka producer: %v", err)
	}
	if kafkaProducer != nil {
		emitter = kafkaProducer
		defer kafkaProducer.Close()
	}

	ctx := context.Background()
	providers, err := teleotel.NewProviders(ctx, cfg.OTLPEndpoint, "account-security-plane", false)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	srv := server.New(cfg.HTTPAddr, tokens, revoked, server.Handlers{
		Auth:     authhandler.NewHandler(authSvc, emitter, logger),
		Password: passwordhandler.NewHandler(),
		MFA:      mfahandler.NewHandler(machine, mfa.NewMemoryEnrollmentStore(), users, emitter, logger, dev),
		Session:  sessionhandler.NewHandler(registry, emitter, logger),
		Posture:  posturehandler.NewHandler(postureSvc, logger),
	})

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second+telemetry.ShutdownDrainDuration)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	logger.Info().Msg("http server stopped")
}
