package wacap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"google.golang.org/protobuf/proto"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCompanionReg"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/gdbrns/go-whatsapp-session-registry/pkg/log"
	"github.com/gdbrns/go-whatsapp-session-registry/pkg/session"
)

const (
	qrChannelWaitTimeout = 2 * time.Minute
	logoutRequestTimeout = 30 * time.Second
	storeCleanupTimeout  = 5 * time.Second

	defaultSessionPath = "sessions"
	datastoreFile      = "wacap.db"
)

var (
	ErrSessionNotFound = errors.New("wacap session not found")
	ErrNotPaired       = errors.New("wacap session store is empty, re-login and scan the QR code again")
)

// Config is passed in explicitly by the bootstrap layer; this package never
// reads environment state directly.
type Config struct {
	// DataDir is the base data directory.
	DataDir string
	// SessionPath overrides the session-storage sub-path under DataDir.
	// Empty means "sessions".
	SessionPath string
	// Verbose toggles whatsmeow debug diagnostics.
	Verbose bool
}

func (c Config) storeDir() string {
	sub := c.SessionPath
	if sub == "" {
		sub = defaultSessionPath
	}
	return filepath.Join(c.DataDir, sub)
}

// Wacap wraps the whatsmeow messaging backend behind the narrow collaborator
// contract consumed by the session registry. It owns the credential datastore
// and one whatsmeow client per session id.
type Wacap struct {
	cfg       Config
	registry  *session.Registry
	container *sqlstore.Container

	mu      sync.RWMutex
	clients map[string]*whatsmeow.Client
}

var _ session.Collaborator = (*Wacap)(nil)

// New opens the sqlite-backed credential datastore under the configured data
// directory and prepares an empty client set. No network activity happens
// until Init.
func New(ctx context.Context, cfg Config, registry *session.Registry) (*Wacap, error) {
	dir := cfg.storeDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session store dir: %w", err)
	}

	dsn := "file:" + filepath.Join(dir, datastoreFile) + "?_foreign_keys=on"
	container, err := sqlstore.New(ctx, "sqlite3", dsn, dbLog(cfg.Verbose))
	if err != nil {
		return nil, fmt.Errorf("open session datastore: %w", err)
	}
	if err := container.Upgrade(ctx); err != nil {
		return nil, fmt.Errorf("upgrade session datastore schema: %w", err)
	}

	log.Print(nil).Info("Wacap datastore ready at " + dir)

	return &Wacap{
		cfg:       cfg,
		registry:  registry,
		container: container,
		clients:   make(map[string]*whatsmeow.Client),
	}, nil
}

func dbLog(verbose bool) waLog.Logger {
	if verbose {
		return waLog.Stdout("Datastore", "DEBUG", true)
	}
	return nil
}

func (w *Wacap) clientLog(sessionID string) waLog.Logger {
	if w.cfg.Verbose {
		return waLog.Stdout("Client/"+sessionID, "DEBUG", true)
	}
	return nil
}

// Init restores a client for every device saved in the datastore and starts
// connecting them. Session ids for restored devices are the device JID local
// part; connect failures are recorded as error status, not returned, so one
// broken device cannot block the rest.
func (w *Wacap) Init(ctx context.Context) error {
	devices, err := w.container.GetAllDevices(ctx)
	if err != nil {
		return fmt.Errorf("load stored devices: %w", err)
	}

	log.Print(nil).Info(fmt.Sprintf("Restoring %d stored session(s)", len(devices)))

	for _, device := range devices {
		if device == nil || device.ID == nil {
			continue
		}
		sessionID := device.ID.User
		client := w.newClient(device, sessionID)

		w.registry.RecordStatus(sessionID, session.Update{
			State:  session.StateConnecting,
			Fields: map[string]interface{}{session.FieldPhone: device.ID.User},
		})
		if err := client.Connect(); err != nil {
			log.Print(nil).Warn("Failed to connect session " + maskSessionID(sessionID) + ": " + err.Error())
			w.registry.RecordStatus(sessionID, session.Update{
				State:  session.StateError,
				Fields: map[string]interface{}{session.FieldError: err.Error()},
			})
		}
	}
	return nil
}

// Destroy disconnects every client and closes the datastore. After Destroy
// the instance must not be reused; the registry recreates the collaborator
// after teardown.
func (w *Wacap) Destroy(ctx context.Context) error {
	w.mu.Lock()
	clients := w.clients
	w.clients = make(map[string]*whatsmeow.Client)
	w.mu.Unlock()

	for sessionID, client := range clients {
		client.Disconnect()
		w.registry.RecordStatus(sessionID, session.Update{State: session.StateDisconnected})
	}

	if err := w.container.Close(); err != nil {
		return fmt.Errorf("close session datastore: %w", err)
	}
	return nil
}

// ListSessions enumerates the active session identifiers, sorted.
func (w *Wacap) ListSessions(ctx context.Context) ([]string, error) {
	w.mu.RLock()
	ids := make([]string, 0, len(w.clients))
	for sessionID := range w.clients {
		ids = append(ids, sessionID)
	}
	w.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}

// Ping is the storage liveness probe used by the health check: a cheap
// roundtrip against the credential datastore.
func (w *Wacap) Ping(ctx context.Context) error {
	if _, err := w.container.GetAllDevices(ctx); err != nil {
		return fmt.Errorf("session datastore ping: %w", err)
	}
	return nil
}

func (w *Wacap) client(sessionID string) *whatsmeow.Client {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.clients[sessionID]
}

func (w *Wacap) newClient(device *store.Device, sessionID string) *whatsmeow.Client {
	if device == nil {
		device = w.container.NewDevice()
	}

	store.DeviceProps.Os = proto.String(runtime.GOOS)
	store.DeviceProps.PlatformType = waCompanionReg.DeviceProps_CHROME.Enum()
	store.DeviceProps.RequireFullSync = proto.Bool(false)

	client := whatsmeow.NewClient(device, w.clientLog(sessionID))
	client.EnableAutoReconnect = true
	client.AutoTrustIdentity = true
	client.AddEventHandler(w.handleEvents(sessionID))

	w.mu.Lock()
	w.clients[sessionID] = client
	w.mu.Unlock()
	return client
}

func (w *Wacap) dropClient(sessionID string) {
	w.mu.Lock()
	delete(w.clients, sessionID)
	w.mu.Unlock()
}

// Reconnect cycles the connection of an already-paired session.
func (w *Wacap) Reconnect(sessionID string) error {
	client := w.client(sessionID)
	if client == nil {
		return ErrSessionNotFound
	}

	client.Disconnect()
	if client.Store.ID == nil {
		return ErrNotPaired
	}

	w.registry.RecordStatus(sessionID, session.Update{State: session.StateConnecting})
	if err := client.Connect(); err != nil {
		w.registry.RecordStatus(sessionID, session.Update{
			State:  session.StateError,
			Fields: map[string]interface{}{session.FieldError: err.Error()},
		})
		return err
	}
	return nil
}

// IsHealthy reports whether the session's client is connected and logged in.
func (w *Wacap) IsHealthy(sessionID string) (bool, error) {
	client := w.client(sessionID)
	if client == nil {
		return false, ErrSessionNotFound
	}
	return client.IsConnected() && client.IsLoggedIn(), nil
}

// SyncHealth reconciles the registry with the live connection state of every
// client. Driven by the periodic health poll.
func (w *Wacap) SyncHealth(ctx context.Context) {
	ids, _ := w.ListSessions(ctx)
	for _, sessionID := range ids {
		healthy, err := w.IsHealthy(sessionID)
		if err != nil {
			continue
		}
		if healthy {
			w.registry.RecordStatus(sessionID, session.Update{State: session.StateConnected})
		} else {
			log.Print(nil).Warn("Session unhealthy: " + maskSessionID(sessionID))
			w.registry.RecordStatus(sessionID, session.Update{State: session.StateDisconnected})
		}
	}
}

// Logout unlinks the session's device, removes its client and clears the
// registry record. Falls back to deleting the local store when the remote
// logout fails so the session never stays half-dead.
func (w *Wacap) Logout(ctx context.Context, sessionID string) error {
	client := w.client(sessionID)
	if client == nil {
		return ErrSessionNotFound
	}

	if client.Store.ID == nil {
		client.Disconnect()
		w.dropClient(sessionID)
		w.registry.RemoveStatus(sessionID)
		return nil
	}

	logoutCtx, cancel := context.WithTimeout(ctx, logoutRequestTimeout)
	defer cancel()
	if err := client.Logout(logoutCtx); err != nil {
		client.Disconnect()
		storeCtx, storeCancel := context.WithTimeout(context.Background(), storeCleanupTimeout)
		defer storeCancel()
		if err := client.Store.Delete(storeCtx); err != nil {
			return fmt.Errorf("delete session store: %w", err)
		}
	}

	w.dropClient(sessionID)
	w.registry.RemoveStatus(sessionID)
	return nil
}

func maskSessionID(sessionID string) string {
	if len(sessionID) < 4 {
		return sessionID
	}
	return sessionID[:len(sessionID)-4] + "xxxx"
}
