package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/sealedvote/tally/api"
	"github.com/sealedvote/tally/ledger"
)

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	ledger *ledger.Ledger
	api    *api.API
	mu     sync.Mutex
	cancel context.CancelFunc
	host   string
	port   int
}

// NewAPI creates a new APIService instance serving the given ledger.
func NewAPI(l *ledger.Ledger, host string, port int) *APIService {
	return &APIService{
		ledger: l,
		host:   host,
		port:   port,
	}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		return fmt.Errorf("service already running")
	}

	_, as.cancel = context.WithCancel(ctx)

	var err error
	as.api, err = api.New(&api.Config{
		Host:   as.host,
		Port:   as.port,
		Ledger: as.ledger,
	})
	if err != nil {
		as.cancel = nil
		return fmt.Errorf("failed to start API server: %w", err)
	}

	return nil
}

// Stop halts the API server.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		as.cancel()
		as.cancel = nil
	}
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.host, as.port
}
