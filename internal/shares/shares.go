// Package shares maintains the local share index: which files this client
// offers for upload, and a history of completed downloads.
package shares

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// ErrNotShared indicates a lookup for a path that is not in the index.
var ErrNotShared = errors.New("file not shared")

type SharedFile struct {
	ID       uint   `gorm:"primaryKey"`
	Path     string `gorm:"uniqueIndex"`
	Name     string
	Size     int64
	Checksum string
	AddedAt  int64
}

type DownloadRecord struct {
	ID          uint `gorm:"primaryKey"`
	Peer        string
	Path        string
	Size        int64
	CompletedAt int64
}

// Open opens the share database at path and migrates the schema.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open share db %s: %w", path, err)
	}
	if err := db.AutoMigrate(&SharedFile{}, &DownloadRecord{}); err != nil {
		return nil, err
	}
	return db, nil
}

type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// Add upserts one file into the index, keyed by path.
func (s *Store) Add(path, name string, size int64, checksum string) error {
	file := SharedFile{
		Path:     path,
		Name:     name,
		Size:     size,
		Checksum: checksum,
		AddedAt:  time.Now().Unix(),
	}
	return s.DB.Where(SharedFile{Path: path}).
		Assign(SharedFile{Name: name, Size: size, Checksum: checksum, AddedAt: file.AddedAt}).
		FirstOrCreate(&file).Error
}

// ScanRoots walks the share roots and indexes every regular file found.
// Returns the number of files indexed; unreadable files are skipped.
func (s *Store) ScanRoots(roots []string) (int, error) {
	count := 0
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			sum, err := checksumFile(path)
			if err != nil {
				return nil
			}
			if err := s.Add(path, d.Name(), info.Size(), sum); err != nil {
				return err
			}
			count++
			return nil
		})
		if err != nil {
			return count, fmt.Errorf("scan %s: %w", root, err)
		}
	}
	return count, nil
}

// FindByPath looks up one shared file by its exact path.
func (s *Store) FindByPath(path string) (SharedFile, error) {
	var file SharedFile
	err := s.DB.Where("path = ?", path).First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return SharedFile{}, ErrNotShared
	}
	return file, err
}

// Search returns shared files whose path contains the query substring.
func (s *Store) Search(query string) ([]SharedFile, error) {
	var files []SharedFile
	err := s.DB.Where("path LIKE ?", "%"+query+"%").Find(&files).Error
	return files, err
}

// All returns every indexed file.
func (s *Store) All() ([]SharedFile, error) {
	var files []SharedFile
	err := s.DB.Find(&files).Error
	return files, err
}

// RecordDownload appends one completed download to the history.
func (s *Store) RecordDownload(peer, path string, size int64) error {
	return s.DB.Create(&DownloadRecord{
		Peer:        peer,
		Path:        path,
		Size:        size,
		CompletedAt: time.Now().Unix(),
	}).Error
}

// History returns completed downloads, most recent first.
func (s *Store) History() ([]DownloadRecord, error) {
	var records []DownloadRecord
	err := s.DB.Order("completed_at desc, id desc").Find(&records).Error
	return records, err
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
