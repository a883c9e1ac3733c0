package main

import (
	"curateai/cmd/handlers"
	"curateai/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
