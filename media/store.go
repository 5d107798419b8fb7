package media

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Store defines the interface for saving, retrieving, and deleting generated
// report artifacts (rendered documents, thumbnails)
type Store interface {
	// Save stores data from reader to a specific relative path within an
	// artifact type's subdirectory. relativeDirHint allows per-report
	// grouping (e.g. the report client id). Returns the final relative path.
	Save(artifactType ArtifactType, relativeDirHint string, filenameHint string, data io.Reader) (string, error)
	// Get retrieves a reader for an artifact
	Get(relativePath string) (io.ReadCloser, os.FileInfo, error)
	// Delete removes an artifact; a missing file is not an error
	Delete(relativePath string) error
	// GetFullPath returns the absolute filesystem path for a relative artifact path
	GetFullPath(relativePath string) (string, error)
	// EnsureDir makes sure a specific artifact type directory exists
	EnsureDir(artifactType ArtifactType) (string, error)
}

// LocalStorage implements the Store interface using the local filesystem
type LocalStorage struct {
	basePath        string                  // absolute path to the MEDIA_STORAGE_PATH
	subDirMap       map[ArtifactType]string // maps ArtifactType to subdirectory name
	resolvedPathMap map[ArtifactType]string // maps ArtifactType to full absolute path
}

// NewLocalStorage creates a new local filesystem store
func NewLocalStorage(basePath string, subDirs map[ArtifactType]string) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}

	resolvedPaths := make(map[ArtifactType]string)
	for artifactType, subDir := range subDirs {
		fullPath := filepath.Join(absBasePath, subDir)
		if !strings.HasPrefix(filepath.Clean(fullPath), absBasePath) {
			return nil, fmt.Errorf("invalid subdirectory configuration: '%s' resolves outside base path '%s'", subDir, absBasePath)
		}
		resolvedPaths[artifactType] = fullPath
	}

	log.Printf("media.store: Initialized LocalStorage at %s", absBasePath)
	return &LocalStorage{
		basePath:        absBasePath,
		subDirMap:       subDirs,
		resolvedPathMap: resolvedPaths,
	}, nil
}

// getArtifactTypeDir resolves the absolute path for a given artifact type
func (ls *LocalStorage) getArtifactTypeDir(artifactType ArtifactType) (string, error) {
	dirPath, ok := ls.resolvedPathMap[artifactType]
	if !ok {
		log.Printf("media.store: Warning - Artifact type '%s' not explicitly configured, using as subdirectory name", artifactType)
		dirPath = filepath.Join(ls.basePath, string(artifactType))

		if !strings.HasPrefix(filepath.Clean(dirPath), ls.basePath) {
			return "", fmt.Errorf("artifact type '%s' resolves outside base path", artifactType)
		}
		ls.resolvedPathMap[artifactType] = dirPath
	}
	return dirPath, nil
}

// EnsureDir creates the directory for the artifact type if it doesn't exist
func (ls *LocalStorage) EnsureDir(artifactType ArtifactType) (string, error) {
	dirPath, err := ls.getArtifactTypeDir(artifactType)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure directory '%s': %w", dirPath, err)
	}
	return dirPath, nil
}

// Save data to the store under the artifact type's directory
func (ls *LocalStorage) Save(artifactType ArtifactType, relativeDirHint string, filenameHint string, data io.Reader) (string, error) {
	baseArtifactDir, err := ls.EnsureDir(artifactType)
	if err != nil {
		return "", err
	}

	targetDir := baseArtifactDir
	if relativeDirHint != "" {
		targetDir = filepath.Join(baseArtifactDir, relativeDirHint)

		if !strings.HasPrefix(filepath.Clean(targetDir), baseArtifactDir) {
			return "", fmt.Errorf("invalid relative directory hint '%s'", relativeDirHint)
		}

		if err := os.MkdirAll(targetDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create sub-directory '%s': %w", targetDir, err)
		}
	}

	if filenameHint == "" {
		return "", fmt.Errorf("filename hint cannot be empty for LocalStorage.Save")
	}

	fullSavePath := filepath.Join(targetDir, filenameHint)

	outFile, err := os.Create(fullSavePath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file '%s': %w", fullSavePath, err)
	}
	defer outFile.Close()

	_, err = io.Copy(outFile, data)
	if err != nil {
		outFile.Close()
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to write data to '%s': %w", fullSavePath, err)
	}

	relativePath, err := filepath.Rel(ls.basePath, fullSavePath)
	if err != nil {
		log.Printf("media.store: Error calculating relative path for '%s' from '%s': %v", fullSavePath, ls.basePath, err)
		return "", fmt.Errorf("internal error calculating relative path: %w", err)
	}

	log.Printf("media.store: Saved artifact to %s", fullSavePath)
	return filepath.ToSlash(relativePath), nil
}

func (ls *LocalStorage) Get(relativePath string) (io.ReadCloser, os.FileInfo, error) {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("artifact not found at '%s': %w", relativePath, err)
		}
		return nil, nil, fmt.Errorf("failed to open artifact '%s': %w", relativePath, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to stat artifact '%s': %w", relativePath, err)
	}

	return file, info, nil
}

// Delete removes an artifact file
func (ls *LocalStorage) Delete(relativePath string) error {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) { // Ignore "not exist" errors
		return fmt.Errorf("failed to delete artifact '%s': %w", relativePath, err)
	}
	if err == nil {
		log.Printf("media.store: Deleted artifact %s", fullPath)
	}
	return nil
}

// GetFullPath calculates the absolute path and performs security check
func (ls *LocalStorage) GetFullPath(relativePath string) (string, error) {
	// clean the relative path first to prevent simple traversal tricks
	cleanRelativePath := filepath.Clean(relativePath)

	fullPath := filepath.Join(ls.basePath, cleanRelativePath)

	absFullPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", relativePath, err)
	}

	if !strings.HasPrefix(absFullPath, ls.basePath) {
		return "", fmt.Errorf("invalid path: access denied for '%s'", relativePath)
	}

	return absFullPath, nil
}
