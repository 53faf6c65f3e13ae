package services

import (
	"github.com/stretchr/testify/mock"

	"github.com/signware/hubsync/internal/models"
	"github.com/signware/hubsync/pkg/identity"
)

// MockHubInfo is a mock implementation of the HubInfoInterface.
type MockHubInfo struct {
	mock.Mock
}

func (m *MockHubInfo) Load() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockHubInfo) Save() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockHubInfo) GetIdentity() *identity.Identity {
	args := m.Called()
	return args.Get(0).(*identity.Identity)
}

func (m *MockHubInfo) GetHubID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockHubInfo) GetAPIToken() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockHubInfo) SetCredentials(hubID, hubCode, networkID, apiToken string) error {
	args := m.Called(hubID, hubCode, networkID, apiToken)
	return args.Error(0)
}

// MockManifestFetcher is a mock implementation of the ManifestFetcher
// interface.
type MockManifestFetcher struct {
	mock.Mock
}

func (m *MockManifestFetcher) GetManifest(hubIDOrCode string) (*models.Manifest, error) {
	args := m.Called(hubIDOrCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Manifest), args.Error(1)
}

// MockContentReconciler is a mock implementation of the ContentReconciler
// interface.
type MockContentReconciler struct {
	mock.Mock
}

func (m *MockContentReconciler) Reconcile(items []models.ContentMeta) (int, error) {
	args := m.Called(items)
	return args.Int(0), args.Error(1)
}

func (m *MockContentReconciler) Cleanup(keep []models.ContentMeta) error {
	args := m.Called(keep)
	return args.Error(0)
}

// MockHeartbeatPublisher is a mock implementation of the
// HeartbeatPublisher interface.
type MockHeartbeatPublisher struct {
	mock.Mock
}

func (m *MockHeartbeatPublisher) SendHeartbeats(hubID string, batch models.HeartbeatBatch) (*models.HeartbeatResult, error) {
	args := m.Called(hubID, batch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HeartbeatResult), args.Error(1)
}

// MockPinger is a mock implementation of the Pinger interface.
type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping() error {
	args := m.Called()
	return args.Error(0)
}
