package command

import (
	"path/filepath"
	"strconv"

	"chansync/internal/domain/consts"
)

// ListArgs builds a flat channel listing that prints title then URL per item.
func ListArgs(channelURL string, limit int, cookiesTxt string, extra []string) []string {
	args := []string{
		"--flat-playlist",
		"--skip-download",
		"--get-url",
		"--get-title",
	}
	if cookiesTxt != "" {
		args = append(args, "--cookies", cookiesTxt)
	}
	args = append(args, extra...)
	if limit > 0 {
		args = append(args, "--playlist-end", strconv.Itoa(limit))
	}
	return append(args, channelURL)
}

// BestAudioArgs fetches an item's best audio track into scratchDir.
func BestAudioArgs(url, scratchDir, format, cookiesTxt string) []string {
	if format == "" {
		format = "bestaudio/worst"
	}
	args := []string{
		url,
		"-f", format,
		"--no-playlist",
		"--output", filepath.Join(scratchDir, consts.ScratchBase+".%(ext)s"),
		"--no-geo-bypass",
	}
	if cookiesTxt != "" {
		args = append(args, "--cookies", cookiesTxt)
	}
	return args
}

// UploadDateArgs prints an item's upload date without downloading it.
func UploadDateArgs(url, cookiesTxt string) []string {
	args := []string{
		url,
		"--user-agent", consts.DefaultUserAgent,
		"--no-playlist",
		"--print", "%(upload_date)s",
		"--skip-download",
		"--no-geo-bypass",
	}
	if cookiesTxt != "" {
		args = append(args, "--cookies", cookiesTxt)
	}
	return args
}

// ConvertArgs transcodes in to an MP3 at out.
func ConvertArgs(in, out string) []string {
	return []string{
		"-i", in,
		"-codec:a", "libmp3lame",
		"-qscale:a", "2",
		"-y", out,
	}
}
