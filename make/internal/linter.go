package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	archiver "github.com/mholt/archiver/v3"
)

// linter is a released linter binary unpacked once into binDir.
type linter struct {
	name    string
	version string
	binDir  string
}

// install returns the path of the unpacked executable, downloading the release archive on first use.
func (l linter) install() (string, error) {
	executable := l.executablePath()
	if _, statErr := os.Stat(executable); statErr == nil {
		return executable, nil
	} else if !os.IsNotExist(statErr) {
		return "", fmt.Errorf("can't check linter executable %v: %v", executable, statErr)
	}

	archivePath, downloadErr := l.download()
	if downloadErr != nil {
		return "", downloadErr
	}
	defer func() {
		_ = os.Remove(archivePath)
	}()
	if unpackErr := archiver.Unarchive(archivePath, l.binDir); unpackErr != nil {
		return "", fmt.Errorf("can't unpack %v into %v: %v", archivePath, l.binDir, unpackErr)
	}
	if _, statErr := os.Stat(executable); statErr != nil {
		return "", fmt.Errorf("archive of %v %v has no %v", l.name, l.version, executable)
	}
	return executable, nil
}

func (l linter) download() (string, error) {
	url := l.releaseURL()
	fmt.Printf("downloading %s\n", url)

	resp, getErr := http.Get(url)
	if getErr != nil {
		return "", fmt.Errorf("can't get %v: %v", url, getErr)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("can't get %v: %v", url, resp.Status)
	}

	archive, createErr := os.CreateTemp("", l.name+"-*."+archiveExtension())
	if createErr != nil {
		return "", fmt.Errorf("can't create temp file for %v: %v", url, createErr)
	}
	defer archive.Close()
	if _, copyErr := io.Copy(archive, resp.Body); copyErr != nil {
		_ = os.Remove(archive.Name())
		return "", fmt.Errorf("can't save %v: %v", url, copyErr)
	}
	return archive.Name(), nil
}

// releaseDir is the top level directory of the release archive, like golangci-lint-1.55.2-linux-amd64.
func (l linter) releaseDir() string {
	return strings.Join([]string{l.name, strings.TrimPrefix(l.version, "v"), runtime.GOOS, runtime.GOARCH}, "-")
}

func (l linter) releaseURL() string {
	return fmt.Sprintf(
		"https://github.com/golangci/%s/releases/download/%s/%s.%s",
		l.name, l.version, l.releaseDir(), archiveExtension(),
	)
}

func (l linter) executablePath() string {
	executable := l.name
	if runtime.GOOS == "windows" {
		executable += ".exe"
	}
	return filepath.Join(l.binDir, l.releaseDir(), executable)
}

func archiveExtension() string {
	if runtime.GOOS == "windows" {
		return "zip"
	}
	return "tar.gz"
}
