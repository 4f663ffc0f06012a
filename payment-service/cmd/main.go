package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/fjod/go_pos/pkg/logger"
	pg "github.com/fjod/go_pos/payment-service/internal/grpc"
	"github.com/fjod/go_pos/payment-service/pkg/api"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func main() {
	v := viper.New()
	v.SetDefault("PAYMENT_SERVICE_PORT", "50054")
	v.SetDefault("PAYMENT_APPROVAL_PERCENT", 95)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.AutomaticEnv()

	log, err := logger.New(v.GetString("APP_ENV"), v.GetString("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	port := v.GetString("PAYMENT_SERVICE_PORT")
	status := pg.RandomStatus{ApprovalPercent: v.GetInt("PAYMENT_APPROVAL_PERCENT")}
	server := pg.NewPaymentServiceServer(status, log.Named("payment"))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", port))
	if err != nil {
		log.Fatal("failed to listen", zap.String("port", port), zap.Error(err))
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	api.RegisterPaymentServiceServer(grpcServer, server)

	go func() {
		log.Info("payment service listening", zap.String("port", port))
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal("failed to serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down payment service")
	grpcServer.GracefulStop()
	log.Info("payment service stopped")
}
