package controllers

import (
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
)

type serverInfoResponse struct {
	Status string `json:"status"`
	Stage  string `json:"stage,omitempty"`
}

// HandleServerInfo answers the health probe.
func HandleServerInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, serverInfoResponse{
		Status: "ok",
		Stage:  os.Getenv("SERVER_STAGE"),
	})
}
