package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"bitbucket.org/calmisland/go-receipt-verify/internal/global"
	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

func LogFormat(contextLogger *log.Entry, format string, args ...interface{}) {
	contextLogger.Infof(format, args...)

	jsonMap := contextLogger.Data
	jsonMap["env"] = os.Getenv("SERVER_STAGE")
	jsonMap["message"] = fmt.Sprintf(format, args...)

	jsonObj, err := json.Marshal(jsonMap)

	if err != nil {
		contextLogger.Errorf("JSON marshalling process failure for a slack message")
	}

	global.VerifySlackMessageService.SendMessage(string(jsonObj))
}

// HandleInternalError reports the error and answers a plain 500.
func HandleInternalError(c echo.Context, err error) error {
	log.Error(err)
	sentry.CaptureException(err)

	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}
