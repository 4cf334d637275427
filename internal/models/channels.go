package models

import "chansync/internal/storage"

// Channel is one configured channel to mirror.
type Channel struct {
	Name      string `json:"name"`
	Source    Source `json:"source"`
	ChannelID string `json:"channel_id"`
}

// OutputDir returns the catalog directory for the channel under root.
func (c Channel) OutputDir(root string) string {
	return storage.Join(root, c.Name, string(c.Source))
}

// Key is the deduplication identity of a configured channel.
func (c Channel) Key() [3]string {
	return [3]string{c.Name, string(c.Source), c.ChannelID}
}
