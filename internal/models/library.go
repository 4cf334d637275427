package models

// LibraryData is the persisted catalog document of one channel.
type LibraryData struct {
	ChannelName string  `json:"channel_name"`
	ChannelURL  string  `json:"channel_url"`
	Source      Source  `json:"source"`
	Vids        []Entry `json:"vids"`
}
