package config

import (
	"log/slog"

	controller "github.com/secmon-lab/mmpost/pkg/controller/http"
	"github.com/urfave/cli/v3"
)

// Server holds server configuration
type Server struct {
	Addr          string
	Prefix        string
	Signature     string
	MaxUploadSize int64
}

// Flags returns CLI flags for Server configuration
func (s *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Server address",
			Category:    "Server",
			Value:       "127.0.0.1:10101",
			Sources:     cli.EnvVars("MMPOST_ADDR"),
			Destination: &s.Addr,
		},
		&cli.StringFlag{
			Name:        "prefix",
			Usage:       "Path prefix the service is mounted under",
			Category:    "Server",
			Sources:     cli.EnvVars("MMPOST_PREFIX", "JUPYTERHUB_SERVICE_PREFIX"),
			Destination: &s.Prefix,
		},
		&cli.StringFlag{
			Name:        "signature",
			Usage:       "Text appended to the caller name in each message",
			Category:    "Server",
			Value:       "(via jupyterpost)",
			Sources:     cli.EnvVars("MMPOST_SIGNATURE"),
			Destination: &s.Signature,
		},
		&cli.Int64Flag{
			Name:        "max-upload-size",
			Usage:       "Maximum request body size in bytes",
			Category:    "Server",
			Value:       controller.DefaultMaxUploadSize,
			Sources:     cli.EnvVars("MMPOST_MAX_UPLOAD_SIZE"),
			Destination: &s.MaxUploadSize,
		},
	}
}

// Configure builds the HTTP server configuration
func (s *Server) Configure() *controller.Config {
	return controller.NewConfig(s.Addr, s.Prefix, s.Signature, s.MaxUploadSize)
}

// LogValue returns structured log value
func (s Server) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", s.Addr),
		slog.String("prefix", s.Prefix),
		slog.String("signature", s.Signature),
		slog.Int64("max_upload_size", s.MaxUploadSize),
	)
}
