package server

import "errors"

var (
	// ErrServerAlreadyRunning is returned when Start is called on a server
	// that is already running.
	ErrServerAlreadyRunning = errors.New("server is already running")

	// ErrMissingAddress is returned when the configuration has no listen
	// address.
	ErrMissingAddress = errors.New("server address is required")

	// ErrInvalidTLSConfig is returned when only one of the certificate and
	// key files is configured.
	ErrInvalidTLSConfig = errors.New("both TLS certificate and key files are required")

	// ErrLoadTLSCertificate is returned when the certificate pair cannot be
	// loaded from disk.
	ErrLoadTLSCertificate = errors.New("failed to load TLS certificate")
)
