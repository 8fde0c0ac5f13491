package sde

import (
	"archive/zip"
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"eve-warehouse/internal/logger"
)

const sdeURL = "https://developers.eveonline.com/static-data/eve-online-static-data-latest-jsonl.zip"

// Load picks the configured item table file when set, otherwise the official SDE
// archive cached under dataDir.
func Load(ctx context.Context, itemTable, dataDir string) (*Table, error) {
	if itemTable != "" {
		logger.Info("SDE", fmt.Sprintf("Loading item table %s", itemTable))
		t, err := LoadFile(itemTable)
		if err != nil {
			return nil, err
		}
		logger.Stats("Item types", t.Len())
		return t, nil
	}
	return LoadSDE(ctx, dataDir)
}

// LoadSDE downloads (if needed) the SDE JSONL archive and reads type names from types.jsonl.
func LoadSDE(ctx context.Context, dataDir string) (*Table, error) {
	zipPath := filepath.Join(dataDir, "sde.zip")
	extractDir := filepath.Join(dataDir, "sde")

	if _, err := os.Stat(extractDir); os.IsNotExist(err) {
		logger.Info("SDE", "Downloading data...")
		if err := downloadFile(ctx, zipPath, sdeURL); err != nil {
			return nil, fmt.Errorf("download SDE: %w", err)
		}
		logger.Info("SDE", "Extracting data...")
		if err := extractZip(zipPath, extractDir); err != nil {
			return nil, fmt.Errorf("extract SDE: %w", err)
		}
	}

	t := &Table{names: make(map[int32]string)}
	logger.Info("SDE", "Loading item types...")
	found, err := readJSONL(extractDir, "types", func(raw json.RawMessage) error {
		var row struct {
			Key  int32             `json:"_key"`
			Name map[string]string `json:"name"`
		}
		if err := json.Unmarshal(raw, &row); err != nil {
			return err
		}
		if name := strings.TrimSpace(row.Name["en"]); row.Key > 0 && name != "" {
			t.names[row.Key] = name
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load types: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("load types: types.jsonl not found under %s", extractDir)
	}

	logger.Section("SDE Statistics")
	logger.Stats("Item types", t.Len())
	return t, nil
}

// readJSONL finds a .jsonl file by base name under dir and feeds each line to fn.
// Malformed lines are skipped. found is false when no such file exists.
func readJSONL(dir, baseName string, fn func(json.RawMessage) error) (found bool, err error) {
	var filePath string
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		name := strings.TrimSuffix(info.Name(), ".jsonl")
		if !info.IsDir() && strings.EqualFold(name, baseName) {
			filePath = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil && err != filepath.SkipAll {
		return false, err
	}
	if filePath == "" {
		return false, nil
	}

	f, err := os.Open(filePath)
	if err != nil {
		return true, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(json.RawMessage(line)); err != nil {
			continue
		}
	}
	return true, scanner.Err()
}

func downloadFile(ctx context.Context, dst, url string) error {
	os.MkdirAll(filepath.Dir(dst), 0755)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

func extractZip(src, dst string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	dstAbs, err := filepath.Abs(dst)
	if err != nil {
		return fmt.Errorf("resolve extract dir: %w", err)
	}

	for _, f := range r.File {
		fpath := filepath.Join(dstAbs, f.Name)

		// Zip slip guard
		if rel, err := filepath.Rel(dstAbs, fpath); err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("illegal zip entry path: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			os.MkdirAll(fpath, 0755)
			continue
		}
		os.MkdirAll(filepath.Dir(fpath), 0755)
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.Create(fpath)
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		out.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
