package main

import (
	"abcpay/config"
	"abcpay/internal"
	"abcpay/services"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "abcpay",
		Short:         "ABC unified payment platform adapter",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	root.PersistentFlags().StringVar(&configPath, "conf", "config.yml", "path to config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP front door",
		RunE:  serve,
	})
	root.AddCommand(&cobra.Command{
		Use:   "certs",
		Short: "Load the configured certificates and print their status",
		RunE:  certs,
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(_ *cobra.Command, _ []string) error {
	logger := internal.NewLogger("internal", false, nil)

	logger.Info("using config file: " + configPath)
	conf, err := config.GetConfig(configPath)
	if err != nil {
		return err
	}

	var database services.Database
	if conf.Mongo.Enabled {
		mongo, err := internal.NewMongoClient(conf)
		if err != nil {
			return fmt.Errorf("mongo client: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mongo.Close(ctx)
		}()
		database = mongo
		logger.Info("mongo client initialized")
	}

	logger = internal.NewLoggerTo(os.Stderr, conf.LogFormat, "internal", conf.IsDebug, database)
	defer logger.Close()
	logger.Info(fmt.Sprintf("environment %s; merchants %v; endpoint %s", conf.Environment, conf.MerchantIDs(), conf.Abc.BaseURL()))

	store, err := internal.LoadCertificates(conf, logger.Child("certificates"))
	if err != nil {
		logger.Error("certificates", err)
	}
	roots, err := store.InstallTrustAnchors()
	if err != nil {
		logger.Error("trust anchors", err)
	}

	transport := internal.NewTransport(&conf.Abc, store, roots, logger.Child("transport"))

	payments := internal.NewPayments(conf)
	payments.SetLogger(logger.Child("payments"))
	payments.SetCertificates(store)
	payments.SetSender(transport)

	server := internal.NewServer(conf)
	server.SetLogger(logger.Child("server"))
	server.SetPaymentsService(payments)
	server.SetCertificates(store)

	return server.Start()
}

func certs(cmd *cobra.Command, _ []string) error {
	conf, err := config.GetConfig(configPath)
	if err != nil {
		return err
	}
	logger := internal.NewLoggerTo(os.Stderr, conf.LogFormat, "certificates", conf.IsDebug, nil)

	store, err := internal.LoadCertificates(conf, logger)
	if err != nil {
		logger.Error("certificates", err)
	}
	if _, err = store.InstallTrustAnchors(); err != nil {
		logger.Error("trust anchors", err)
	}

	status := store.Status()
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	if len(status.MerchantCertificate) == 0 {
		return fmt.Errorf("no merchant certificate loaded")
	}
	return nil
}
