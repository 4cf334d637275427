package models

// DownloadRequest describes one item to fetch.
type DownloadRequest struct {
	URL             string
	Dest            string
	DownloadMedia   bool
	FetchUploadDate bool
}

// FinalResult is the terminal outcome of one DownloadRequest.
//
// Err is the item's terminal failure. A failed upload date lookup for an item
// whose media was placed is reported in DateErr instead, and UploadDate is
// kept even when the media failed.
type FinalResult struct {
	URL        string
	Dest       string
	UploadDate *Date
	Err        error
	DateErr    error
}

// OK reports whether the request finished without error.
func (r FinalResult) OK() bool {
	return r.Err == nil
}
