package upload

import "time"

// Outcome is what happened to one image during an upload run
type Outcome struct {
	Folder   string
	FileName string
	Key      string
	Locator  string
	Uploaded bool
	// Removed is set when the image left the catalog before its upload completed
	Removed  bool
	Progress float64
	Bytes    int64
	Duration time.Duration
	Err      error
}

// Result collects the outcomes of an upload run
type Result struct {
	Outcomes     []Outcome
	FolderErrors map[string]error
}

func (r Result) Uploaded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Uploaded {
			n++
		}
	}
	return n
}

func (r Result) Failed() int {
	return len(r.Outcomes) - r.Uploaded()
}
