package main

import (
	"fmt"
	"os"
)

// @title SMA Substitution API
// @version 1.0.0
// @description Teacher absence ledger and substitute assignment engine.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
