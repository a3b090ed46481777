package pipeline

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // timezone names must resolve on hosts without a zoneinfo database

	"github.com/umputun/postkit/pkg/domain"
)

const (
	DefaultTimezone     = "Asia/Kolkata"
	DefaultWorkers      = 4
	DefaultFetchTimeout = 45 * time.Second
	DefaultUserAgent    = "thn-post-kit/2.0 (+https://thehackernews.com)"
)

// Request describes one pipeline run
type Request struct {
	FeedSource   string        `json:"feed_source"`
	OutputRoot   string        `json:"output_root"`
	TargetDate   domain.Date   `json:"target_date"`
	Timezone     string        `json:"timezone,omitempty"`
	MaxItems     int           `json:"max_items,omitempty"` // 0 means no cap
	UserAgent    string        `json:"user_agent,omitempty"`
	FetchTimeout time.Duration `json:"fetch_timeout,omitempty"`
	RunTimeout   time.Duration `json:"run_timeout,omitempty"` // 0 means no run deadline
	Workers      int           `json:"workers,omitempty"`
	Overwrite    bool          `json:"overwrite,omitempty"`
}

// Validate checks required fields and fills in defaults for the optional ones
func (r *Request) Validate() error {
	var errs []error
	if strings.TrimSpace(r.FeedSource) == "" {
		errs = append(errs, errors.New("feed source is required"))
	}
	if strings.TrimSpace(r.OutputRoot) == "" {
		errs = append(errs, errors.New("output root is required"))
	}
	if r.TargetDate.IsZero() {
		errs = append(errs, errors.New("target date is required"))
	}
	if r.MaxItems < 0 {
		errs = append(errs, fmt.Errorf("max items must not be negative, got %d", r.MaxItems))
	}
	if r.FetchTimeout < 0 || r.RunTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if r.Timezone == "" {
		r.Timezone = DefaultTimezone
	}
	if _, err := ParseTimezone(r.Timezone); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid request: %w", errors.Join(errs...))
	}

	if r.Workers <= 0 {
		r.Workers = DefaultWorkers
	}
	if r.FetchTimeout == 0 {
		r.FetchTimeout = DefaultFetchTimeout
	}
	if r.UserAgent == "" {
		r.UserAgent = DefaultUserAgent
	}
	return nil
}

var offsetRe = regexp.MustCompile(`^(?:UTC|GMT)?([+-])(\d{1,2})(?::?(\d{2}))?$`)

// ParseTimezone resolves an IANA zone name ("Asia/Kolkata"), "UTC", or a fixed
// offset such as "+05:30" or "UTC+05:30"
func ParseTimezone(id string) (*time.Location, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.EqualFold(id, "UTC") || strings.EqualFold(id, "Z") {
		return time.UTC, nil
	}

	if m := offsetRe.FindStringSubmatch(strings.ToUpper(id)); m != nil {
		hours, _ := strconv.Atoi(m[2])
		minutes := 0
		if m[3] != "" {
			minutes, _ = strconv.Atoi(m[3])
		}
		if hours > 14 || minutes > 59 {
			return nil, fmt.Errorf("invalid timezone offset %q", id)
		}
		secs := hours*3600 + minutes*60
		if m[1] == "-" {
			secs = -secs
		}
		return time.FixedZone(id, secs), nil
	}

	loc, err := time.LoadLocation(id)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", id, err)
	}
	return loc, nil
}

// InDay reports whether t, converted to loc, falls on date.
// A zero timestamp never matches.
func InDay(t time.Time, date domain.Date, loc *time.Location) bool {
	if t.IsZero() {
		return false
	}
	return domain.DateOf(t.In(loc)) == date
}

// Today returns the current date in loc
func Today(loc *time.Location) domain.Date {
	return domain.DateOf(time.Now().In(loc))
}
