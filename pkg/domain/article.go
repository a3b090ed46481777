package domain

import "time"

// Strategy names the text extraction strategy that produced a result
type Strategy string

const (
	StrategyNone        Strategy = ""
	StrategyPrimary     Strategy = "primary"
	StrategySecondary   Strategy = "secondary"
	StrategyReadability Strategy = "readability"
)

// ExtractionResult is the outcome of running the extraction chain on one document
type ExtractionResult struct {
	Text     string
	HTML     string // markup of the selected content, empty if the strategy works on text only
	Strategy Strategy
	Success  bool
}

// RunState is the state of a pipeline run
type RunState string

const (
	RunIdle       RunState = "idle"
	RunLoading    RunState = "loading_feed"
	RunFiltering  RunState = "filtering"
	RunProcessing RunState = "processing_entries"
	RunCompleted  RunState = "completed"
	RunFailed     RunState = "failed"
)

// EntryStage is the last stage an entry reached during processing
type EntryStage string

const (
	StageFetching      EntryStage = "fetching"
	StageExtracting    EntryStage = "extracting"
	StageImageFetching EntryStage = "image_fetching"
	StageWriting       EntryStage = "writing"
	StageRecorded      EntryStage = "recorded"
)

// ArtifactPaths holds archive-relative paths of written artifacts, empty when not written
type ArtifactPaths struct {
	HTML    string `json:"html,omitempty"`
	Text    string `json:"md,omitempty"`
	Image   string `json:"image,omitempty"`
	Caption string `json:"txt,omitempty"`
}

// Empty reports whether no artifact was written
func (p ArtifactPaths) Empty() bool {
	return p.HTML == "" && p.Text == "" && p.Image == "" && p.Caption == ""
}

// ArticleOutcome records what happened to one in-scope feed entry
type ArticleOutcome struct {
	Entry     FeedEntry     `json:"entry"`
	Slug      string        `json:"slug,omitempty"`
	Paths     ArtifactPaths `json:"paths"`
	Strategy  Strategy      `json:"strategy,omitempty"`
	ImageURL  string        `json:"image_url,omitempty"`
	Stage     EntryStage    `json:"stage"`
	Warnings  []string      `json:"warnings,omitempty"`
	Err       error         `json:"-"`
	Error     string        `json:"error,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`
}

// Failed reports whether the entry is counted as failed
func (o ArticleOutcome) Failed() bool {
	return o.Err != nil
}

// Fail records a fatal-to-entry error
func (o *ArticleOutcome) Fail(err error) {
	o.Err = err
	o.Error = err.Error()
	o.ErrorKind = ErrorKind(err)
}

// Warn records a non-fatal problem
func (o *ArticleOutcome) Warn(msg string) {
	o.Warnings = append(o.Warnings, msg)
}

// RunSummary aggregates outcomes of one pipeline run, outcomes are in feed order
type RunSummary struct {
	State         RunState         `json:"state"`
	FeedSource    string           `json:"feed_source"`
	TargetDate    Date             `json:"target_date"`
	Timezone      string           `json:"timezone"`
	DayDir        string           `json:"day_dir"`
	TotalEntries  int              `json:"total_entries"`
	MatchedByDate int              `json:"matched_by_date"`
	Succeeded     int              `json:"succeeded"`
	Failed        int              `json:"failed"`
	Abandoned     int              `json:"abandoned,omitempty"`
	Interrupted   bool             `json:"interrupted,omitempty"`
	Outcomes      []ArticleOutcome `json:"outcomes"`
	StartedAt     time.Time        `json:"started_at"`
	Duration      time.Duration    `json:"duration"`
	Error         string           `json:"error,omitempty"`
	ErrorKind     string           `json:"error_kind,omitempty"`
}
