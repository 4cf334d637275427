// Package config loads the multi-channel sync document.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"chansync/internal/domain/consts"
	"chansync/internal/domain/logger"
	"chansync/internal/models"
	"chansync/internal/sources"

	"github.com/tailscale/hujson"
)

// ErrInvalidConfig is returned for documents that cannot drive a sync.
var ErrInvalidConfig = errors.New("invalid config")

// CmdOptions gates the phases run for every channel. Both default to true.
type CmdOptions struct {
	Download bool
	Scan     bool
}

// Config is the multi-channel sync document.
type Config struct {
	Output string
	// Rclone maps remote names to their rclone settings.
	Rclone     map[string]map[string]string
	Channels   []models.Channel
	CmdOptions CmdOptions
}

type document struct {
	Output     string                    `json:"output"`
	Rclone     map[string]map[string]any `json:"rclone"`
	Channels   []models.Channel          `json:"channels"`
	CmdOptions *struct {
		Download *bool `json:"download"`
		Scan     *bool `json:"scan"`
	} `json:"cmd_options"`
}

// Load reads the document at path, or from RCLONE_CONFIG_JSON when path is empty.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	return LoadEnv()
}

// LoadFile reads the document at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	return Parse(data)
}

// LoadEnv reads the document from the RCLONE_CONFIG_JSON environment variable.
func LoadEnv() (*Config, error) {
	data, ok := os.LookupEnv(consts.EnvConfigJSON)
	if !ok {
		return nil, fmt.Errorf("%w: expecting environment variable %s", ErrInvalidConfig, consts.EnvConfigJSON)
	}
	return Parse([]byte(data))
}

// Parse decodes a document. Comments and trailing commas are accepted.
func Parse(data []byte) (*Config, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	var doc document
	if err := json.Unmarshal(std, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if doc.Output == "" {
		return nil, fmt.Errorf("%w: missing output", ErrInvalidConfig)
	}

	cfg := &Config{
		Output:     doc.Output,
		Rclone:     stringify(doc.Rclone),
		CmdOptions: CmdOptions{Download: true, Scan: true},
	}
	if o := doc.CmdOptions; o != nil {
		if o.Download != nil {
			cfg.CmdOptions.Download = *o.Download
		}
		if o.Scan != nil {
			cfg.CmdOptions.Scan = *o.Scan
		}
	}

	if cfg.Channels, err = normalizeChannels(doc.Channels); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalizeChannels validates channels, applies handle conventions and drops duplicates.
func normalizeChannels(in []models.Channel) ([]models.Channel, error) {
	seen := make(map[[3]string]struct{}, len(in))
	out := make([]models.Channel, 0, len(in))

	for i, ch := range in {
		ch.Name = strings.TrimSpace(ch.Name)
		if ch.Name == "" {
			return nil, fmt.Errorf("%w: channel %d has no name", ErrInvalidConfig, i)
		}
		src, err := models.ParseSource(string(ch.Source))
		if err != nil {
			return nil, fmt.Errorf("%w: channel %q: %w", ErrInvalidConfig, ch.Name, err)
		}
		ch.Source = src
		if strings.TrimSpace(ch.ChannelID) == "" {
			return nil, fmt.Errorf("%w: channel %q has no channel_id", ErrInvalidConfig, ch.Name)
		}
		ch.ChannelID = sources.MustLookup(src).NormalizeID(ch.ChannelID)

		if _, dup := seen[ch.Key()]; dup {
			logger.Pl.W("Dropping duplicate channel %s/%s (%s)", ch.Name, ch.Source, ch.ChannelID)
			continue
		}
		seen[ch.Key()] = struct{}{}
		out = append(out, ch)
	}
	return out, nil
}

// stringify renders rclone settings as the strings rclone expects.
func stringify(in map[string]map[string]any) map[string]map[string]string {
	out := make(map[string]map[string]string, len(in))
	for remote, settings := range in {
		m := make(map[string]string, len(settings))
		for k, v := range settings {
			switch val := v.(type) {
			case string:
				m[k] = val
			case nil:
				m[k] = ""
			default:
				m[k] = fmt.Sprint(val)
			}
		}
		out[remote] = m
	}
	return out
}

// Remotes returns the configured rclone remote names, sorted.
func (c *Config) Remotes() []string {
	out := make([]string, 0, len(c.Rclone))
	for name := range c.Rclone {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
