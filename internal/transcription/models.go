package transcription

import "fmt"

// Result is the candidate list returned by the transcription endpoint for
// one uploaded chunk, ordered from partial to most complete.
type Result struct {
	Candidates []string `json:"transcriptions"`
}

// Final returns the last (most complete) candidate, which is the
// authoritative transcription for the chunk. ok is false for an empty
// candidate list.
func (r *Result) Final() (text string, ok bool) {
	if r == nil || len(r.Candidates) == 0 {
		return "", false
	}
	return r.Candidates[len(r.Candidates)-1], true
}

// ServiceError indicates the transcription endpoint responded with a
// non-success status
type ServiceError struct {
	Status int
	Body   string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("transcription service returned status %d: %s", e.Status, e.Body)
}
