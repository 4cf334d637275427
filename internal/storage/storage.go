// Package storage abstracts the destination file tree.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotExist is returned when a path is absent from the backend.
var ErrNotExist = errors.New("path does not exist")

// Backend is a destination file tree: local disk or an rclone remote.
type Backend interface {
	// Ls lists the file names directly under dir. A missing dir lists as empty.
	Ls(ctx context.Context, dir string) ([]string, error)
	// ReadFile returns ErrNotExist when the path is absent.
	ReadFile(ctx context.Context, p string) ([]byte, error)
	// WriteFile creates parent directories as needed and replaces the file.
	WriteFile(ctx context.Context, p string, data []byte) error
	Exists(ctx context.Context, p string) (bool, error)
	MkdirAll(ctx context.Context, dir string) error
	// String describes the backend for logging.
	String() string
}

// Open selects a backend for an output root.
//
// "remote:path" roots go through rclone and must name a remote defined in
// rcloneConf when one is given; anything else is local disk.
func Open(root string, rcloneConf map[string]map[string]string, rclonePath string) (Backend, error) {
	if root == "" {
		return nil, errors.New("empty output root")
	}
	if remote, ok := remoteName(root); ok {
		if _, known := rcloneConf[remote]; !known && len(rcloneConf) > 0 {
			return nil, fmt.Errorf("output %q names remote %q missing from rclone config", root, remote)
		}
		return NewRclone(rclonePath, rcloneConf), nil
	}
	return NewLocal(), nil
}

// remoteName extracts "remote" from "remote:path", ignoring drive letters.
func remoteName(root string) (string, bool) {
	i := strings.Index(root, ":")
	if i <= 1 || strings.HasPrefix(root, "/") {
		return "", false
	}
	name := root[:i]
	if strings.ContainsAny(name, `/\`) {
		return "", false
	}
	return name, true
}

// Join joins backend path elements with forward slashes.
func Join(elem ...string) string {
	if len(elem) == 0 {
		return ""
	}
	if remote, ok := remoteName(elem[0]); ok {
		rest := strings.TrimPrefix(elem[0], remote+":")
		return remote + ":" + path.Join(append([]string{rest}, elem[1:]...)...)
	}
	return path.Join(elem...)
}

// Dir returns all but the last element of p.
func Dir(p string) string {
	if remote, ok := remoteName(p); ok {
		return remote + ":" + path.Dir(strings.TrimPrefix(p, remote+":"))
	}
	return path.Dir(p)
}
