package models

import "regexp"

// jobTokenPattern matches the opaque job token embedded in posting URLs,
// a tilde followed by hex digits (plain digits are a subset).
var jobTokenPattern = regexp.MustCompile(`~[0-9a-fA-F]+`)

// RawJob is the loosely shaped posting a source yields before
// normalization. Sources disagree on which identity field they populate,
// so all three variants are carried.
type RawJob struct {
	ID          string   `json:"id,omitempty"`
	UID         string   `json:"uid,omitempty"`
	JobID       string   `json:"job_id,omitempty"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Skills      []string `json:"skills,omitempty"`
	Budget      string   `json:"budget,omitempty"`
}

// ResolveJobID returns the first populated identity field, falling back
// to the token derived from the URL. Empty means no identity at all.
func (r RawJob) ResolveJobID() string {
	for _, candidate := range []string{r.JobID, r.ID, r.UID} {
		if candidate != "" {
			return candidate
		}
	}
	return DeriveJobID(r.URL)
}

// DeriveJobID extracts the ~token job identifier from a posting URL.
// Returns "" when the URL carries no token.
func DeriveJobID(url string) string {
	return jobTokenPattern.FindString(url)
}
