package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/imagefinder/internal/crawler"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageJobStart Stage = "JOB_START"
	StagePageDone Stage = "PAGE_DONE"
	StageJobDone  Stage = "JOB_DONE"
	StageJobError Stage = "JOB_ERROR"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Status classes recorded on page events. StatusNone marks a page that got no
// HTTP response at all.
const (
	Status2xx  StatusClass = "2xx"
	Status3xx  StatusClass = "3xx"
	Status4xx  StatusClass = "4xx"
	Status5xx  StatusClass = "5xx"
	StatusNone StatusClass = "none"
)

// Event captures one step of a job's progress.
type Event struct {
	JobID string
	TS    time.Time
	Stage Stage
	// Page is set for StagePageDone.
	Page crawler.PageRecord
	// StatusClass groups Page.StatusCode.
	StatusClass StatusClass
	// Dur is the job runtime on completion events.
	Dur time.Duration
	// Note carries the error text of StageJobError.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == "" {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageJobStart, StageJobDone, StageJobError:
	case StagePageDone:
		if e.Page.URL == "" {
			return errors.New("page event requires url")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// PageEvent builds the StagePageDone event for page.
func PageEvent(jobID string, page crawler.PageRecord, at time.Time) Event {
	return Event{
		JobID:       jobID,
		TS:          at,
		Stage:       StagePageDone,
		Page:        page,
		StatusClass: ClassifyStatus(page.StatusCode),
	}
}

// ClassifyStatus groups HTTP status codes for page events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusNone
	}
}

// Counters converts a page event into the job counter delta it represents.
func (e Event) Counters() crawler.JobCounters {
	if e.Stage != StagePageDone {
		return crawler.JobCounters{}
	}
	delta := crawler.JobCounters{
		ImagesFound:  e.Page.Images,
		LogosSkipped: e.Page.LogosSkipped,
		Retries:      max(e.Page.Attempts-1, 0),
	}
	if e.Page.Error != "" {
		delta.PagesFailed = 1
	} else {
		delta.PagesSucceeded = 1
	}
	return delta
}
