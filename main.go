// package main reads & validates configuration for the proxy service
// and if the config is valid starts and monitors an instance of the proxy service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nixta/gp-datatype-proxy/config"
	"github.com/nixta/gp-datatype-proxy/logging"
	"github.com/nixta/gp-datatype-proxy/service"
)

var (
	serviceConfig config.Config
	serviceLogger logging.ServiceLogger
)

func init() {
	serviceConfig = config.ReadConfig()

	err := config.Validate(serviceConfig)

	if err != nil {
		panic(err)
	}

	var opts []logging.Option
	if serviceConfig.LogFilePath != "" {
		opts = append(opts, logging.WithLogFile(serviceConfig.LogFilePath))
	}

	serviceLogger, err = logging.New(serviceConfig.LogLevel, opts...)

	if err != nil {
		panic(err)
	}
}

func main() {
	serviceLogger.Debug().Msg(fmt.Sprintf("initial config: %+v", serviceConfig))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, err := service.New(serviceConfig, &serviceLogger)

	if err != nil {
		serviceLogger.Panic().Msg(fmt.Sprintf("%v", err))
	}

	if err := service.Run(ctx); err != nil {
		serviceLogger.Fatal().Err(err).Msg("proxy service stopped")
	}
}
