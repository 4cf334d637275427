package catalog

import (
	"slices"

	"chansync/internal/models"
)

// FindMissing returns the entries whose file path is absent from files.
//
// The result is ordered by ascending upload date when every missing entry
// has one, and in catalog order otherwise.
func FindMissing(entries []models.Entry, files []string) []models.Entry {
	present := make(map[string]struct{}, len(files))
	for _, f := range files {
		present[f] = struct{}{}
	}

	missing := make([]models.Entry, 0)
	allDated := true
	for _, e := range entries {
		if _, ok := present[e.FilePath]; ok {
			continue
		}
		if e.UploadDate == nil {
			allDated = false
		}
		missing = append(missing, e)
	}

	if allDated {
		slices.SortStableFunc(missing, func(a, b models.Entry) int {
			return a.UploadDate.Compare(b.UploadDate.Time)
		})
	}
	return missing
}

// mergeEntries upserts incoming into existing by URL.
//
// A matched entry only takes a non-nil upload date and a set error flag; an
// unmatched one is appended.
func mergeEntries(existing, incoming []models.Entry) []models.Entry {
	index := make(map[string]int, len(existing))
	for i, e := range existing {
		index[e.URL] = i
	}

	for _, in := range incoming {
		i, ok := index[in.URL]
		if !ok {
			index[in.URL] = len(existing)
			existing = append(existing, in)
			continue
		}
		if in.UploadDate != nil {
			d := *in.UploadDate
			existing[i].UploadDate = &d
		}
		if in.Error {
			existing[i].Error = true
		}
	}
	return existing
}
