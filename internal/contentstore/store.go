package contentstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/signware/hubsync/internal/models"
	"github.com/signware/hubsync/internal/utils"
	"github.com/signware/hubsync/pkg/file"
)

// Downloader fetches content binaries from the upstream tier.
type Downloader interface {
	ContentURL(contentID string) string
	DownloadToFile(url, outputPath string) error
}

// Store is the relay's local content cache. It guarantees byte-identical
// local copies of everything the manifest references without redownloading
// what already matches, and never exposes a half-written file under its
// final name.
type Store struct {
	dir        string
	fileOps    file.FileOperations
	downloader Downloader
	pool       *utils.WorkerPool
	logger     zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
	subs     []chan struct{}
}

// NewStore creates a content cache rooted at dir, downloading with up to
// workers parallel transfers.
func NewStore(dir string, fileOps file.FileOperations, downloader Downloader, workers int, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content directory %s: %w", dir, err)
	}
	if workers < 1 {
		workers = 1
	}
	return &Store{
		dir:        dir,
		fileOps:    fileOps,
		downloader: downloader,
		pool:       utils.NewWorkerPool(workers),
		logger:     logger,
		inFlight:   make(map[string]struct{}),
	}, nil
}

// Subscribe returns a channel that receives a (coalesced) notification
// whenever the committed local content set changes.
func (s *Store) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// Path returns the committed local path for a content filename.
func (s *Store) Path(filename string) string {
	return filepath.Join(s.dir, filename)
}

// Reconcile ensures a verified local copy of every referenced content item.
// Items are processed independently over the worker pool; one failed
// download never aborts the rest. It returns how many files changed on
// disk and an aggregate of per-item errors.
func (s *Store) Reconcile(items []models.ContentMeta) (int, error) {
	var (
		wg      sync.WaitGroup
		resmu   sync.Mutex
		changed int
		errs    []error
	)

	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.Filename == "" {
			continue
		}
		// The same content can appear in several playlists.
		if _, dup := seen[item.Filename]; dup {
			continue
		}
		seen[item.Filename] = struct{}{}

		meta := item
		wg.Add(1)
		s.pool.Submit(func() {
			defer wg.Done()
			didChange, err := s.ensure(meta)
			resmu.Lock()
			defer resmu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", meta.Filename, err))
				return
			}
			if didChange {
				changed++
			}
		})
	}
	wg.Wait()

	if changed > 0 {
		s.notify()
	}
	return changed, errors.Join(errs...)
}

// ensure applies the download decision for one item: download when the
// file is missing or its hash mismatches a non-empty manifest hash. An
// empty manifest hash with an existing local file means trust-and-skip;
// treating an absent hash as "never matches" would redownload the whole
// catalog every cycle.
func (s *Store) ensure(meta models.ContentMeta) (bool, error) {
	target := s.Path(meta.Filename)

	exists, err := s.fileOps.IsFileExists(target)
	if err != nil {
		return false, err
	}

	if exists {
		if meta.Hash == "" {
			s.logger.Debug().Str("filename", meta.Filename).Msg("No upstream hash, trusting existing file")
			return false, nil
		}
		localHash, err := s.fileOps.GetFileHash(target)
		if err != nil {
			return false, err
		}
		if strings.EqualFold(localHash, meta.Hash) {
			s.logger.Debug().Str("filename", meta.Filename).Msg("Hash match, skipping download")
			return false, nil
		}
		s.logger.Info().Str("filename", meta.Filename).Msg("Hash mismatch, redownloading")
	}

	if err := s.download(meta, target); err != nil {
		return false, err
	}
	return true, nil
}

// download writes to a temporary path and renames into place only after
// full, verified completion.
func (s *Store) download(meta models.ContentMeta, target string) error {
	s.mu.Lock()
	if _, busy := s.inFlight[meta.Filename]; busy {
		s.mu.Unlock()
		return fmt.Errorf("download already in flight")
	}
	s.inFlight[meta.Filename] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inFlight, meta.Filename)
		s.mu.Unlock()
	}()

	tempPath := target + ".part"
	url := s.downloader.ContentURL(meta.ID)

	if err := s.downloader.DownloadToFile(url, tempPath); err != nil {
		os.Remove(tempPath)
		return err
	}

	if meta.Hash != "" {
		gotHash, err := s.fileOps.GetFileHash(tempPath)
		if err != nil {
			os.Remove(tempPath)
			return err
		}
		if !strings.EqualFold(gotHash, meta.Hash) {
			os.Remove(tempPath)
			return fmt.Errorf("downloaded file hash %s does not match manifest hash %s", gotHash, meta.Hash)
		}
	}

	if err := os.Rename(tempPath, target); err != nil {
		os.Remove(tempPath)
		return err
	}

	s.logger.Info().Str("filename", meta.Filename).Str("content_id", meta.ID).Msg("Content committed")
	return nil
}

// Cleanup removes committed files no longer referenced by the manifest.
// Files with a download in flight, and their temp parts, are left alone so
// cleanup never races a transfer.
func (s *Store) Cleanup(keep []models.ContentMeta) error {
	wanted := make(map[string]struct{}, len(keep))
	for _, meta := range keep {
		wanted[meta.Filename] = struct{}{}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".part") {
			continue
		}
		if _, ok := wanted[name]; ok {
			continue
		}

		s.mu.Lock()
		_, busy := s.inFlight[name]
		s.mu.Unlock()
		if busy {
			continue
		}

		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			s.logger.Warn().Err(err).Str("filename", name).Msg("Failed to remove stale content")
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Stale content cleaned up")
	}
	return nil
}

// Close drains the download workers.
func (s *Store) Close() {
	s.pool.Shutdown()
}

func (s *Store) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
