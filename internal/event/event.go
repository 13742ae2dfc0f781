package event

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Kind identifies what happened. The set is closed: sources may only emit
// kinds listed in AllKinds.
type Kind string

const (
	KindBoot         Kind = "boot"
	KindShutdown     Kind = "shutdown"
	KindLogon        Kind = "logon"
	KindLogoff       Kind = "logoff"
	KindStandbyEnter Kind = "standby_enter"
	KindStandbyExit  Kind = "standby_exit"

	// Issue-tracker kinds (Jira).
	KindIssueCreated      Kind = "issue_created"
	KindIssueUpdated      Kind = "issue_updated"
	KindIssueTransitioned Kind = "issue_transitioned"
	KindIssueCommented    Kind = "issue_commented"
)

var allKinds = []Kind{
	KindBoot,
	KindShutdown,
	KindLogon,
	KindLogoff,
	KindStandbyEnter,
	KindStandbyExit,
	KindIssueCreated,
	KindIssueUpdated,
	KindIssueTransitioned,
	KindIssueCommented,
}

// SystemKinds are the kinds produced by OS log adapters.
var SystemKinds = []Kind{
	KindBoot,
	KindShutdown,
	KindLogon,
	KindLogoff,
	KindStandbyEnter,
	KindStandbyExit,
}

// AllKinds returns every known kind in declaration order.
// The returned slice is a copy.
func AllKinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind converts a string to a Kind, rejecting unknown values.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown event kind %q", s)
	}
	return k, nil
}

// ParseKinds parses a list of kind names. An empty input yields nil,
// which callers interpret as "all kinds".
func ParseKinds(names []string) ([]Kind, error) {
	if len(names) == 0 {
		return nil, nil
	}
	kinds := make([]Kind, 0, len(names))
	for _, n := range names {
		k, err := ParseKind(n)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Event is a single activity observation. Events are immutable once stored.
type Event struct {
	// Time is the observation time in epoch milliseconds.
	Time int64 `json:"time" yaml:"time"`

	// Source names the producing source. Empty on events returned by a
	// source fetch; the synchronizer stamps it before storage.
	Source string `json:"source" yaml:"source,omitempty"`

	Name    Kind   `json:"name" yaml:"name"`
	Details string `json:"details" yaml:"details"`
}

// Key is the dedup identity of an event. Two events with equal keys are the
// same event regardless of details.
type Key struct {
	Time   int64
	Name   Kind
	Source string
}

// Key returns the dedup key of e.
func (e Event) Key() Key {
	return Key{Time: e.Time, Name: e.Name, Source: e.Source}
}

// At returns the event time as a time.Time in UTC.
func (e Event) At() time.Time {
	return ToTime(e.Time)
}

// Normalize returns a copy of e with the source lower-cased and the details
// NFC-normalized and trimmed. Normalization keeps equivalent details from
// OS logs byte-identical across fetches.
func (e Event) Normalize() Event {
	e.Source = strings.ToLower(strings.TrimSpace(e.Source))
	e.Details = strings.TrimSpace(norm.NFC.String(e.Details))
	return e
}

// String formats the event for logs and text output.
func (e Event) String() string {
	return fmt.Sprintf("%s %s/%s", e.At().Format(time.RFC3339), e.Source, e.Name)
}

// MinValidTime is 2000-01-01T00:00:00Z in epoch milliseconds. Stored events
// older than this are flagged by store health checks: they usually mean a
// seconds value was stored where milliseconds were expected. Ingest accepts
// them.
const MinValidTime int64 = 946684800000

// FromTime converts t to epoch milliseconds.
func FromTime(t time.Time) int64 {
	return t.UnixMilli()
}

// ToTime converts epoch milliseconds to a UTC time.Time.
func ToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ValidSourceName reports whether name can be used as a storage partition
// key: non-empty, lowercase, without whitespace.
func ValidSourceName(name string) error {
	if name == "" {
		return fmt.Errorf("source name is empty")
	}
	for _, r := range name {
		if unicode.IsSpace(r) {
			return fmt.Errorf("source name %q contains whitespace", name)
		}
		if unicode.IsUpper(r) {
			return fmt.Errorf("source name %q must be lowercase", name)
		}
	}
	return nil
}
