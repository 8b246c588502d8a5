package routers

import (
	apiController "bitbucket.org/calmisland/go-receipt-verify/internal/controllers"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupRouter is ...
func SetupRouter() *echo.Echo {
	// Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(sentryecho.New(sentryecho.Options{}))

	v1 := e.Group("/v1")

	v1.GET("/serverinfo", apiController.HandleServerInfo)

	v1.POST("/verify/:platform", apiController.HandleVerifyPayment)
	v1.POST("/subscription/:platform/cancel", apiController.HandleCancelSubscription)
	v1.POST("/subscription/:platform/defer", apiController.HandleDeferSubscription)

	return e
}
