package contentstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/signware/hubsync/internal/models"
	"github.com/signware/hubsync/pkg/file"
)

// MockDownloader is a mock implementation of the Downloader interface.
type MockDownloader struct {
	mock.Mock
}

func (m *MockDownloader) ContentURL(contentID string) string {
	args := m.Called(contentID)
	return args.String(0)
}

func (m *MockDownloader) DownloadToFile(url, outputPath string) error {
	args := m.Called(url, outputPath)
	return args.Error(0)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func newTestStore(t *testing.T, downloader Downloader) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), file.NewFileService(), downloader, 2, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

// serveBytes configures the mock to write payload to the requested output
// path, the way a real transfer would.
func serveBytes(t *testing.T, m *MockDownloader, contentID string, payload []byte) {
	m.On("ContentURL", contentID).Return("http://hub/content/" + contentID + "/file")
	m.On("DownloadToFile", "http://hub/content/"+contentID+"/file", mock.Anything).
		Run(func(args mock.Arguments) {
			require.NoError(t, os.WriteFile(args.String(1), payload, 0644))
		}).Return(nil)
}

// TestStore_Reconcile_DownloadsMissing tests that an absent file is
// fetched, verified and committed without leaving a temp part behind.
func TestStore_Reconcile_DownloadsMissing(t *testing.T) {
	// Setup
	payload := []byte("video bytes")
	downloader := new(MockDownloader)
	serveBytes(t, downloader, "content-1", payload)

	s := newTestStore(t, downloader)
	events := s.Subscribe()

	// Execute
	changed, err := s.Reconcile([]models.ContentMeta{
		{ID: "content-1", Filename: "promo.mp4", Hash: sha256Hex(payload)},
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	got, err := os.ReadFile(s.Path("promo.mp4"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	_, err = os.Stat(s.Path("promo.mp4") + ".part")
	assert.True(t, os.IsNotExist(err))

	select {
	case <-events:
	default:
		t.Fatal("expected a content-changed event")
	}
	downloader.AssertExpectations(t)
}

// TestStore_Reconcile_SkipsMatching tests that a byte-identical local
// copy is never redownloaded.
func TestStore_Reconcile_SkipsMatching(t *testing.T) {
	payload := []byte("already here")
	downloader := new(MockDownloader)
	s := newTestStore(t, downloader)
	require.NoError(t, os.WriteFile(s.Path("promo.mp4"), payload, 0644))

	changed, err := s.Reconcile([]models.ContentMeta{
		{ID: "content-1", Filename: "promo.mp4", Hash: sha256Hex(payload)},
	})

	require.NoError(t, err)
	assert.Equal(t, 0, changed)
	downloader.AssertNotCalled(t, "DownloadToFile", mock.Anything, mock.Anything)
}

// TestStore_Reconcile_EmptyHashTrustsExisting tests the empty-hash
// policy: an existing file is trusted, a missing one is still fetched.
func TestStore_Reconcile_EmptyHashTrustsExisting(t *testing.T) {
	downloader := new(MockDownloader)
	serveBytes(t, downloader, "content-2", []byte("new file"))

	s := newTestStore(t, downloader)
	require.NoError(t, os.WriteFile(s.Path("existing.mp4"), []byte("whatever"), 0644))

	changed, err := s.Reconcile([]models.ContentMeta{
		{ID: "content-1", Filename: "existing.mp4", Hash: ""},
		{ID: "content-2", Filename: "fresh.mp4", Hash: ""},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	downloader.AssertNotCalled(t, "ContentURL", "content-1")

	got, err := os.ReadFile(s.Path("fresh.mp4"))
	require.NoError(t, err)
	assert.Equal(t, []byte("new file"), got)
}

// TestStore_Reconcile_RedownloadsMismatch tests that a hash mismatch
// replaces the local copy.
func TestStore_Reconcile_RedownloadsMismatch(t *testing.T) {
	payload := []byte("correct bytes")
	downloader := new(MockDownloader)
	serveBytes(t, downloader, "content-1", payload)

	s := newTestStore(t, downloader)
	require.NoError(t, os.WriteFile(s.Path("promo.mp4"), []byte("stale bytes"), 0644))

	changed, err := s.Reconcile([]models.ContentMeta{
		{ID: "content-1", Filename: "promo.mp4", Hash: sha256Hex(payload)},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	got, err := os.ReadFile(s.Path("promo.mp4"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

// TestStore_Reconcile_CorruptDownloadNotCommitted tests that a transfer
// whose bytes do not match the manifest hash never lands under the final
// name.
func TestStore_Reconcile_CorruptDownloadNotCommitted(t *testing.T) {
	downloader := new(MockDownloader)
	serveBytes(t, downloader, "content-1", []byte("corrupted in transit"))

	s := newTestStore(t, downloader)

	changed, err := s.Reconcile([]models.ContentMeta{
		{ID: "content-1", Filename: "promo.mp4", Hash: sha256Hex([]byte("expected bytes"))},
	})

	require.Error(t, err)
	assert.Equal(t, 0, changed)

	_, statErr := os.Stat(s.Path("promo.mp4"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(s.Path("promo.mp4") + ".part")
	assert.True(t, os.IsNotExist(statErr))
}

// TestStore_Reconcile_PartialFailure tests that one failed item never
// blocks the rest of the batch.
func TestStore_Reconcile_PartialFailure(t *testing.T) {
	payload := []byte("good bytes")
	downloader := new(MockDownloader)
	serveBytes(t, downloader, "content-good", payload)
	downloader.On("ContentURL", "content-bad").Return("http://hub/content/content-bad/file")
	downloader.On("DownloadToFile", "http://hub/content/content-bad/file", mock.Anything).
		Return(errors.New("connection reset"))

	s := newTestStore(t, downloader)

	changed, err := s.Reconcile([]models.ContentMeta{
		{ID: "content-good", Filename: "good.mp4", Hash: sha256Hex(payload)},
		{ID: "content-bad", Filename: "bad.mp4", Hash: "ff00"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.mp4")
	assert.Equal(t, 1, changed)

	got, readErr := os.ReadFile(s.Path("good.mp4"))
	require.NoError(t, readErr)
	assert.Equal(t, payload, got)
}

// TestStore_Reconcile_DeduplicatesFilenames tests that content shared by
// several playlists is fetched once.
func TestStore_Reconcile_DeduplicatesFilenames(t *testing.T) {
	payload := []byte("shared bytes")
	downloader := new(MockDownloader)
	serveBytes(t, downloader, "content-1", payload)

	s := newTestStore(t, downloader)

	meta := models.ContentMeta{ID: "content-1", Filename: "shared.mp4", Hash: sha256Hex(payload)}
	changed, err := s.Reconcile([]models.ContentMeta{meta, meta, meta})

	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	downloader.AssertNumberOfCalls(t, "DownloadToFile", 1)
}

// TestStore_Cleanup tests stale file removal and temp part preservation.
func TestStore_Cleanup(t *testing.T) {
	downloader := new(MockDownloader)
	s := newTestStore(t, downloader)

	require.NoError(t, os.WriteFile(s.Path("keep.mp4"), []byte("keep"), 0644))
	require.NoError(t, os.WriteFile(s.Path("stale.mp4"), []byte("stale"), 0644))
	require.NoError(t, os.WriteFile(s.Path("half.mp4.part"), []byte("half"), 0644))

	err := s.Cleanup([]models.ContentMeta{{ID: "content-1", Filename: "keep.mp4"}})
	require.NoError(t, err)

	_, statErr := os.Stat(s.Path("keep.mp4"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(s.Path("stale.mp4"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(s.Path("half.mp4.part"))
	assert.NoError(t, statErr, "in-progress temp parts must survive cleanup")
}
