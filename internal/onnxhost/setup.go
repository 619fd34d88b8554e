package onnxhost

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// DefaultRuntimeVersion is the ONNX runtime release matching onnxruntime_go.
// Update it together with the onnxruntime_go dependency.
const DefaultRuntimeVersion = "1.16.0"

// ErrUnsupportedPlatform indicates the current OS/arch has no release.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

var platformArchives = map[string]map[string]string{
	"linux": {
		"amd64": "linux-x64",
		"arm64": "linux-aarch64",
	},
	"darwin": {
		"amd64": "osx-x86_64",
		"arm64": "osx-arm64",
	},
}

var libraryNames = map[string]string{
	"linux":  "libonnxruntime.so",
	"darwin": "libonnxruntime.dylib",
}

func platformArchive(goos, goarch string) (string, error) {
	if arch, ok := platformArchives[goos][goarch]; ok {
		return arch, nil
	}
	return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
}

func libraryName(goos string) string {
	if name, ok := libraryNames[goos]; ok {
		return name
	}
	return "libonnxruntime.so"
}

// InstallDir is where Download places the runtime library.
func InstallDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "modelvault", "lib")
}

// LibraryPath locates the runtime library: configured, then ONNX_PATH,
// then the managed install. Returns "" when none is found.
func LibraryPath(configured string) string {
	if configured != "" {
		return configured
	}
	if env := os.Getenv("ONNX_PATH"); env != "" {
		return env
	}
	managed := filepath.Join(InstallDir(), libraryName(runtime.GOOS))
	if _, err := os.Stat(managed); err == nil {
		return managed
	}
	return ""
}

var releaseURLTemplate = "https://github.com/microsoft/onnxruntime/releases/download/v%s/onnxruntime-%s-%s.tgz"

func downloadURL(version, platform string) string {
	return fmt.Sprintf(releaseURLTemplate, version, platform, version)
}

// Download fetches the runtime for the current platform into InstallDir.
// An empty version selects DefaultRuntimeVersion.
func Download(ctx context.Context, version string, logger *zap.Logger) (string, error) {
	if version == "" {
		version = DefaultRuntimeVersion
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return downloadTo(ctx, http.DefaultClient, version, InstallDir(), logger)
}

func downloadTo(ctx context.Context, client *http.Client, version, destDir string, logger *zap.Logger) (string, error) {
	platform, err := platformArchive(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return "", err
	}
	url := downloadURL(version, platform)

	if err := os.MkdirAll(destDir, 0o700); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	logger.Info("downloading onnx runtime", zap.String("url", url), zap.String("dest", destDir))

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading onnx runtime: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	prefix := fmt.Sprintf("onnxruntime-%s-%s/lib/", platform, version)
	if err := extractLibs(resp.Body, destDir, prefix, libraryName(runtime.GOOS)); err != nil {
		return "", fmt.Errorf("extracting archive: %w", err)
	}
	return filepath.Join(destDir, libraryName(runtime.GOOS)), nil
}

// extractLibs copies every entry under prefix in the gzipped tarball into
// destDir, keeping symlinks. It fails if libName was not among them.
func extractLibs(r io.Reader, destDir, prefix, libName string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	found := false

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		name := strings.TrimPrefix(header.Name, "./")
		if !strings.HasPrefix(name, prefix) || header.Typeflag == tar.TypeDir {
			continue
		}

		filename := filepath.Base(name)
		dest := filepath.Join(destDir, filename)

		if header.Typeflag == tar.TypeSymlink {
			_ = os.Remove(dest)
			if err := os.Symlink(header.Linkname, dest); err != nil {
				continue
			}
			if filename == libName {
				found = true
			}
			continue
		}

		if err := writeEntry(dest, tr); err != nil {
			return fmt.Errorf("writing file %s: %w", filename, err)
		}
		if filename == libName || strings.HasPrefix(filename, libName+".") {
			found = true
		}
	}

	if !found {
		return fmt.Errorf("library %s not found in archive", libName)
	}
	return nil
}

func writeEntry(dest string, r io.Reader) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Ensure returns the runtime library path, downloading it when missing.
func Ensure(ctx context.Context, configured string, logger *zap.Logger) (string, error) {
	if p := LibraryPath(configured); p != "" {
		return p, nil
	}
	p, err := Download(ctx, "", logger)
	if err != nil {
		return "", fmt.Errorf("onnx runtime unavailable: %w (run 'modelvault init' or set ONNX_PATH)", err)
	}
	return p, nil
}
