package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/timetrace/internal/event"
)

// Jira defaults.
const (
	DefaultJiraTimeout  = 30 * time.Second
	DefaultJiraPageSize = 50
	jiraAttempts        = 3
	jiraBackoff         = 500 * time.Millisecond
	jiraMaxBackoff      = 4 * time.Second
	jiraSearchPath      = "/rest/api/3/search"
	jiraTimeLayout      = "2006-01-02T15:04:05.000-0700"
	jiraJQLTimeLayout   = "2006/01/02 15:04"
)

var jiraKinds = []event.Kind{
	event.KindIssueCreated,
	event.KindIssueUpdated,
	event.KindIssueTransitioned,
	event.KindIssueCommented,
}

// JiraConfig holds connection settings for a Jira Cloud site.
type JiraConfig struct {
	BaseURL  string
	Email    string
	APIToken string

	// JQL is ANDed with the update-time filter, e.g. "assignee = currentUser()".
	JQL string

	// Location is the zone Jira uses to interpret JQL dates (the account's
	// profile zone). Defaults to UTC.
	Location *time.Location

	Timeout  time.Duration
	PageSize int
}

// Jira reads issue activity through the Jira Cloud REST search API.
type Jira struct {
	name   string
	cfg    JiraConfig
	client *http.Client
}

// JiraOption configures a Jira source.
type JiraOption func(*Jira)

// WithJiraClient overrides the HTTP client.
func WithJiraClient(c *http.Client) JiraOption {
	return func(j *Jira) { j.client = c }
}

// NewJira creates a Jira source named name ("jira" if empty).
func NewJira(name string, cfg JiraConfig, opts ...JiraOption) *Jira {
	if name == "" {
		name = "jira"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultJiraTimeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultJiraPageSize
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	j := &Jira{name: name, cfg: cfg}
	for _, opt := range opts {
		opt(j)
	}
	if j.client == nil {
		j.client = newHTTPClient(cfg.Timeout)
	}
	return j
}

// Name implements Source.
func (j *Jira) Name() string { return j.name }

// IsActive implements Source. Requires base URL, email, and API token.
func (j *Jira) IsActive() bool {
	return j.cfg.BaseURL != "" && j.cfg.Email != "" && j.cfg.APIToken != ""
}

type jiraSearchResponse struct {
	StartAt    int         `json:"startAt"`
	MaxResults int         `json:"maxResults"`
	Total      int         `json:"total"`
	Issues     []jiraIssue `json:"issues"`
}

type jiraIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Created string `json:"created"`
		Updated string `json:"updated"`
		Comment struct {
			Comments []struct {
				Created string `json:"created"`
				Author  struct {
					DisplayName string `json:"displayName"`
				} `json:"author"`
			} `json:"comments"`
		} `json:"comment"`
	} `json:"fields"`
	Changelog struct {
		Histories []struct {
			Created string `json:"created"`
			Items   []struct {
				Field      string `json:"field"`
				FromString string `json:"fromString"`
				ToString   string `json:"toString"`
			} `json:"items"`
		} `json:"histories"`
	} `json:"changelog"`
}

// Fetch implements Source. Pages through every issue updated since the
// watermark and derives one event per creation, update, status change,
// and comment at or after since.
func (j *Jira) Fetch(ctx context.Context, kinds []event.Kind, since int64) ([]event.Event, error) {
	selected := selectKinds(jiraKinds, kinds)
	if len(selected) == 0 {
		return []event.Event{}, nil
	}
	want := make(map[event.Kind]bool, len(selected))
	for _, k := range selected {
		want[k] = true
	}

	events := []event.Event{}
	startAt := 0
	for {
		page, err := j.search(ctx, since, startAt)
		if err != nil {
			return nil, &FetchError{Source: j.name, Cause: err}
		}
		for _, issue := range page.Issues {
			found, err := issueEvents(issue, since, want)
			if err != nil {
				return nil, &FetchError{Source: j.name, Cause: err}
			}
			events = append(events, found...)
		}
		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			break
		}
	}
	return events, nil
}

func (j *Jira) jql(since int64) string {
	from := time.UnixMilli(since).In(j.cfg.Location).Format(jiraJQLTimeLayout)
	q := fmt.Sprintf("updated >= %q", from)
	if extra := strings.TrimSpace(j.cfg.JQL); extra != "" {
		q += " AND (" + extra + ")"
	}
	return q + " ORDER BY updated ASC"
}

func (j *Jira) search(ctx context.Context, since int64, startAt int) (*jiraSearchResponse, error) {
	params := url.Values{}
	params.Set("jql", j.jql(since))
	params.Set("startAt", strconv.Itoa(startAt))
	params.Set("maxResults", strconv.Itoa(j.cfg.PageSize))
	params.Set("fields", "summary,created,updated,comment")
	params.Set("expand", "changelog")
	endpoint := j.cfg.BaseURL + jiraSearchPath + "?" + params.Encode()

	var page jiraSearchResponse
	err := retry(ctx, jiraAttempts, jiraBackoff, jiraMaxBackoff, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return permanent(err)
		}
		req.SetBasicAuth(j.cfg.Email, j.cfg.APIToken)
		req.Header.Set("Accept", "application/json")

		resp, err := j.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			statusErr := fmt.Errorf("jira search: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return statusErr
			}
			return permanent(statusErr)
		}

		page = jiraSearchResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			return permanent(fmt.Errorf("decode jira search response: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func issueEvents(issue jiraIssue, since int64, want map[event.Kind]bool) ([]event.Event, error) {
	var out []event.Event
	add := func(kind event.Kind, raw, details string) error {
		if !want[kind] || raw == "" {
			return nil
		}
		ts, err := parseJiraTime(raw)
		if err != nil {
			return fmt.Errorf("issue %s: %w", issue.Key, err)
		}
		if ts < since {
			return nil
		}
		out = append(out, event.Event{Time: ts, Name: kind, Details: details})
		return nil
	}

	label := issue.Key
	if issue.Fields.Summary != "" {
		label += " " + issue.Fields.Summary
	}

	if err := add(event.KindIssueCreated, issue.Fields.Created, label); err != nil {
		return nil, err
	}
	if issue.Fields.Updated != issue.Fields.Created {
		if err := add(event.KindIssueUpdated, issue.Fields.Updated, label); err != nil {
			return nil, err
		}
	}
	for _, h := range issue.Changelog.Histories {
		for _, item := range h.Items {
			if item.Field != "status" {
				continue
			}
			details := fmt.Sprintf("%s: %s -> %s", issue.Key, item.FromString, item.ToString)
			if err := add(event.KindIssueTransitioned, h.Created, details); err != nil {
				return nil, err
			}
		}
	}
	for _, c := range issue.Fields.Comment.Comments {
		details := issue.Key + ": comment"
		if c.Author.DisplayName != "" {
			details += " by " + c.Author.DisplayName
		}
		if err := add(event.KindIssueCommented, c.Created, details); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseJiraTime(s string) (int64, error) {
	t, err := time.Parse(jiraTimeLayout, s)
	if err != nil {
		if t2, err2 := time.Parse(time.RFC3339Nano, s); err2 == nil {
			return t2.UnixMilli(), nil
		}
		return 0, fmt.Errorf("parse jira time %q: %w", s, err)
	}
	return t.UnixMilli(), nil
}
