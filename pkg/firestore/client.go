// Copyright 2025 Covenant Protocol
//
// Firestore Client
// Firebase Admin SDK client for syncing audit trail data to Firestore

package firestore

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	gcpfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// Client wraps the Firestore client for audit trail writes
type Client struct {
	app       *firebase.App
	firestore *gcpfirestore.Client
	projectID string
	logger    *log.Logger
	enabled   bool
	mu        sync.RWMutex
}

// ClientConfig holds configuration for the Firestore client
type ClientConfig struct {
	// ProjectID is the Firebase/GCP project ID
	ProjectID string

	// CredentialsFile is the path to the service account JSON file.
	// If empty, GOOGLE_APPLICATION_CREDENTIALS is used.
	CredentialsFile string

	// Enabled controls whether writes are actually performed. When false
	// all operations are no-ops, which keeps local development offline.
	Enabled bool

	// Logger for client operations
	Logger *log.Logger
}

// DefaultClientConfig returns a ClientConfig from environment variables
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		ProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		Enabled:         os.Getenv("FIRESTORE_ENABLED") == "true",
		Logger:          log.New(os.Stdout, "[Firestore] ", log.LstdFlags),
	}
}

// NewClient creates a new Firestore client
func NewClient(ctx context.Context, cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stdout, "[Firestore] ", log.LstdFlags)
	}

	client := &Client{
		projectID: cfg.ProjectID,
		logger:    cfg.Logger,
		enabled:   cfg.Enabled,
	}

	if !cfg.Enabled {
		client.logger.Println("Firestore disabled; audit writes will be no-ops")
		return client, nil
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project ID is required when Firestore is enabled")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	client.app = app
	client.firestore = fs
	return client, nil
}

// IsEnabled reports whether writes are performed
func (c *Client) IsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled && c.firestore != nil
}

// Collection returns a Firestore collection reference, or nil when
// disabled
func (c *Client) Collection(name string) *gcpfirestore.CollectionRef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.firestore == nil {
		return nil
	}
	return c.firestore.Collection(name)
}

// Close releases the underlying client
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.firestore != nil {
		return c.firestore.Close()
	}
	return nil
}
