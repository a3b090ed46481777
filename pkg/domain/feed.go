package domain

import (
	"fmt"
	"time"
)

// FeedKind identifies the document variant a feed was parsed from
type FeedKind string

const (
	FeedKindRSS  FeedKind = "rss"
	FeedKindAtom FeedKind = "atom"
	FeedKindJSON FeedKind = "json"
)

// Feed is a parsed feed document with entries in document order
type Feed struct {
	Title   string
	Link    string
	Kind    FeedKind
	Entries []FeedEntry
}

// FeedEntry is one item of a feed, normalized across RSS and Atom
type FeedEntry struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Published time.Time `json:"published"` // zero if the feed gives neither published nor updated time
	Summary   string    `json:"summary,omitempty"`
	Content   string    `json:"-"`
	ImageHint ImageHint `json:"-"`
	FeedIndex int       `json:"feed_index"` // position in the feed document
}

// ImageHint keeps the structured image references an entry carries.
// References are kept in the order they appear in the feed.
type ImageHint struct {
	Enclosures []Enclosure
	Media      []Enclosure // media:content
	Thumbnails []string    // media:thumbnail
	ItemImage  string      // channel-level item image (itunes:image, atom logo etc)
}

// Enclosure is a linked binary attachment
type Enclosure struct {
	URL    string
	Type   string
	Medium string
}

// Date is a calendar date without time of day or location
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in its own location
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses YYYY-MM-DD
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// IsZero reports whether the date is unset
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// String returns the date as YYYY-MM-DD
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// MarshalText implements encoding.TextMarshaler, a zero date is encoded as an empty string
func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
