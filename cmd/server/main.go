package main

import (
	"os"

	"bitbucket.org/calmisland/go-receipt-verify/internal/global"
	"bitbucket.org/calmisland/go-receipt-verify/internal/routers"
)

func main() {
	global.Setup()
	echo := routers.SetupRouter()

	listenAddress := os.Getenv("LISTEN_ADDRESS")
	if listenAddress == "" {
		listenAddress = ":8092"
	}

	// Start server
	echo.Logger.Fatal(echo.Start(listenAddress))
}
