package planning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mverner/kidplan/internal/model"
	"github.com/mverner/kidplan/internal/planner"
)

const dateFormat = "2006-01-02"

// Config holds planning service configuration.
type Config struct {
	BaseURL string
	APIKey  string
}

// Client talks to the external AI planning service. It implements
// planner.Service. Activity details are cached by id; the cache is
// additive and shared across sessions.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu      sync.RWMutex
	details map[string]*model.Activity
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		details: make(map[string]*model.Activity),
	}
}

type planWeekRequest struct {
	StartDate                string                    `json:"start_date"`
	EndDate                  string                    `json:"end_date"`
	MaxActivitiesPerChild    int                       `json:"max_activities_per_child,omitempty"`
	AvoidBackToBack          bool                      `json:"avoid_back_to_back"`
	ScheduleSiblingsTogether bool                      `json:"schedule_siblings_together"`
	AllowGaps                bool                      `json:"allow_gaps"`
	ChildAvailability        []model.ChildAvailability `json:"child_availability"`
}

type planWeekResponse struct {
	Success  bool                  `json:"success"`
	Schedule *model.WeeklySchedule `json:"schedule,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// PlanWeek requests a full weekly schedule. A failure reported by the
// service is surfaced with its message verbatim.
func (c *Client) PlanWeek(ctx context.Context, req planner.PlanRequest) (*model.WeeklySchedule, error) {
	body := planWeekRequest{
		StartDate:                req.StartDate.Format(dateFormat),
		EndDate:                  req.EndDate.Format(dateFormat),
		MaxActivitiesPerChild:    req.Constraints.MaxActivitiesPerChild,
		AvoidBackToBack:          req.Constraints.AvoidBackToBack,
		ScheduleSiblingsTogether: req.Constraints.ScheduleSiblingsTogether,
		AllowGaps:                req.Constraints.AllowGaps,
		ChildAvailability:        req.ChildAvailability,
	}

	var resp planWeekResponse
	if err := c.post(ctx, "/v1/plan-week", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Schedule == nil {
		if resp.Error != "" {
			return nil, errors.New(resp.Error)
		}
		return nil, errors.New("planning service returned no schedule")
	}
	return resp.Schedule, nil
}

type findAlternativeRequest struct {
	ChildID             int64    `json:"child_id"`
	Day                 string   `json:"day"`
	TimeSlot            string   `json:"time_slot"`
	ExcludedActivityIDs []string `json:"excluded_activity_ids"`
	WeekStart           string   `json:"week_start"`
}

type findAlternativeResponse struct {
	Success     bool                 `json:"success"`
	Alternative *model.ScheduleEntry `json:"alternative,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// FindAlternative requests one replacement activity. A successful
// response with no alternative returns (nil, nil): not finding one is a
// first-class outcome, not an error.
func (c *Client) FindAlternative(ctx context.Context, req planner.AlternativeRequest) (*model.ScheduleEntry, error) {
	body := findAlternativeRequest{
		ChildID:             req.ChildID,
		Day:                 req.Day,
		TimeSlot:            req.TimeSlot,
		ExcludedActivityIDs: req.ExcludedActivityIDs,
		WeekStart:           req.WeekStart.Format(dateFormat),
	}
	if body.ExcludedActivityIDs == nil {
		body.ExcludedActivityIDs = []string{}
	}

	var resp findAlternativeResponse
	if err := c.post(ctx, "/v1/find-alternative", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		if resp.Error != "" {
			return nil, errors.New(resp.Error)
		}
		return nil, errors.New("alternative lookup failed")
	}
	return resp.Alternative, nil
}

// GetActivityDetails looks up one activity, caching by id. Unknown ids
// return (nil, nil). Transient server errors are retried briefly; the
// caller treats any remaining failure as a degraded card.
func (c *Client) GetActivityDetails(ctx context.Context, activityID string) (*model.Activity, error) {
	c.mu.RLock()
	if a, ok := c.details[activityID]; ok {
		c.mu.RUnlock()
		return a, nil
	}
	c.mu.RUnlock()

	var activity *model.Activity
	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.cfg.BaseURL+"/v1/activities/"+url.PathEscape(activityID), nil)
		if err != nil {
			return err
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil
		case resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("activity lookup: status %d", resp.StatusCode))
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("activity lookup: status %d", resp.StatusCode)
		}

		var a model.Activity
		if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
			return fmt.Errorf("decode activity: %w", err)
		}
		activity = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, nil
	}

	c.mu.Lock()
	c.details[activityID] = activity
	c.mu.Unlock()
	return activity, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("planning service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("planning service returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}
