package api

import (
	"io"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/terraincognita07/healthintake/internal/storage"
)

type AppConfig struct {
	AppName       string
	BodyLimit     int
	AllowedOrigin string
	UploadDir     string
	AccessLog     io.Writer
}

func NewApp(handler *Handler, config AppConfig) *fiber.App {
	app := fiber.New(fiberConfig(handler, config))

	app.Use(recover.New())
	app.Use(logger.New(accessLogConfig(config.AccessLog)))
	app.Use(cors.New(corsConfig(config.AllowedOrigin)))
	app.Use(compress.New())

	app.Static("/"+storage.PublicPrefix, config.UploadDir, fiber.Static{
		ByteRange: true,
	})
	RegisterRoutes(app, handler)
	app.Use(handler.NotFound)
	return app
}

func fiberConfig(handler *Handler, config AppConfig) fiber.Config {
	return fiber.Config{
		AppName:               config.AppName,
		DisableStartupMessage: true,
		BodyLimit:             config.BodyLimit,
		ReadTimeout:           60 * time.Second,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		ErrorHandler:          handler.ErrorHandler,
	}
}

func accessLogConfig(output io.Writer) logger.Config {
	if output == nil {
		output = os.Stdout
	}
	return logger.Config{
		Format:     "${status} ${method} ${path} ${latency}\n",
		TimeFormat: time.RFC3339,
		Output:     output,
	}
}

func corsConfig(origin string) cors.Config {
	return cors.Config{
		AllowOrigins:     origin,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: true,
	}
}
