package global

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"bitbucket.org/calmisland/go-receipt-verify/internal/services"
	"bitbucket.org/calmisland/go-receipt-verify/pkg/iap"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
)

// Verifier is the shared receipt verifier used by every request handler.
var Verifier *iap.Verifier

// VerifySlackMessageService mirrors verification events to a Slack channel.
var VerifySlackMessageService *services.SlackMessageService

// Setup setup the server based on configuration
func Setup() {
	// .env is optional; deployed environments inject real variables.
	godotenv.Load()

	// Log as JSON instead of the default ASCII formatter.
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)

	setupSentry()
	setupSlackMessageService()

	Verifier = iap.New()
}

func setupSentry() {
	dsn := os.Getenv("SENTRY_DSN")
	if len(dsn) == 0 {
		return
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: os.Getenv("SERVER_STAGE"),
	}); err != nil {
		fmt.Printf("Sentry initialization failed: %v\n", err)
	}
}

func setupSlackMessageService() {
	VerifySlackMessageService = &services.SlackMessageService{
		WebHookURL: os.Getenv("VERIFY_CHANNEL_SLACK_HOOK_URL"),
	}
}
