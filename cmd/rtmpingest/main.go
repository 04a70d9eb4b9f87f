// Command rtmpingest runs a standalone RTMP ingest server. Accepted streams
// are logged; embedders replace the handler with their own pipeline glue.
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/calderab/rtmp"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config file")
	flag.Parse()

	config, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := config.BuildLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	server := &rtmp.Server{
		Addr:     config.Server.Addr,
		Logger:   logger,
		Handler:  loggingHandler{logger: logger},
		Registry: rtmp.NewRegistry(),
	}
	if config.TLS.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(config.TLS.CertFile, config.TLS.KeyFile)
		if err != nil {
			logger.Fatal(fmt.Sprint("failed to load tls key pair: ", err))
		}
		server.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	if err := server.Listen(); err != nil {
		logger.Fatal(fmt.Sprint("server stopped: ", err))
	}
}

// loggingHandler is the default event sink: stream lifecycle at info level,
// per-message media at debug.
type loggingHandler struct {
	logger *zap.Logger
}

func (h loggingHandler) HandleEvent(sessionID string, event rtmp.Event) {
	switch e := event.(type) {
	case rtmp.Connected:
		h.logger.Info(fmt.Sprint("session ", sessionID, ": client connected to app ", e.App))
	case rtmp.Published:
		h.logger.Info(fmt.Sprint("session ", sessionID, ": stream ", e.StreamKey, " started (", e.PublishingType, ")"))
	case rtmp.Metadata:
		h.logger.Info(fmt.Sprint("session ", sessionID, ": metadata received"))
	case rtmp.Media:
		h.logger.Debug(fmt.Sprint("session ", sessionID, ": ", e.Kind, " message, ", len(e.Payload), " bytes at ", e.Timestamp, "ms"))
	case rtmp.Warning:
		h.logger.Warn(fmt.Sprint("session ", sessionID, ": ", e.Reason))
	case rtmp.EndOfStream:
		h.logger.Info(fmt.Sprint("session ", sessionID, ": end of stream"))
	}
}
