// Package runlog posts sequence runs to a bench-log server so long soak
// tests leave a reviewable record: the parameters, every phase transition,
// and how the run ended.
package runlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/calvinmclean/babyapi"
)

// Params are the sequence settings recorded with a run.
type Params struct {
	TargetRPM float64
	Scale     float64
	RunTime   time.Duration
	StopTime  time.Duration
	Cycles    int
}

// Run is the wire record for one sequence run. Phase lengths are stored as
// seconds to keep the records readable.
type Run struct {
	ID          string `json:"id,omitempty"`
	Name        string
	Date        time.Time
	TargetRPM   float64
	Scale       float64
	RunSeconds  float64
	StopSeconds float64
	Cycles      int
	Stages      []Stage    `json:",omitempty"`
	Events      []Event    `json:",omitempty"`
	Outcome     string     `json:",omitempty"`
	EndTime     *time.Time `json:",omitempty"`
}

// Stage is one phase transition within a run.
type Stage struct {
	Name  string
	Start time.Time
}

// Event is a free-form note, usually a link failure.
type Event struct {
	Note string
	Time time.Time
}

type runRecord struct {
	// include NilResource so we don't implement Render/Bind which are not needed
	*babyapi.NilResource
	Run
}

func (r runRecord) GetID() string {
	return r.Run.ID
}

// Client talks to the run-log server's /runs resource.
type Client struct {
	client *babyapi.Client[*runRecord]
	runID  string
}

func NewClient(addr string) *Client {
	client := babyapi.NewClient[*runRecord](addr, "/runs")
	return &Client{client: client}
}

// CreateRun opens a run record, named after the sequencer's run ID, and
// remembers the server-assigned ID for the follow-up calls.
func (c *Client) CreateRun(ctx context.Context, name string, params Params) (string, error) {
	resp, err := c.client.Post(ctx, &runRecord{
		Run: Run{
			Name:        name,
			Date:        time.Now(),
			TargetRPM:   params.TargetRPM,
			Scale:       params.Scale,
			RunSeconds:  params.RunTime.Seconds(),
			StopSeconds: params.StopTime.Seconds(),
			Cycles:      params.Cycles,
		},
	})
	if err != nil {
		return "", err
	}

	c.runID = resp.Data.GetID()

	return resp.Data.GetID(), nil
}

// AddStage records a phase transition.
func (c Client) AddStage(ctx context.Context, name string, now time.Time) error {
	s := Stage{Name: name, Start: now}

	url, _ := c.client.URL(c.runID)
	url += "/add-stage"

	return c.makeRequest(ctx, url, s)
}

// AddEvent records a note, such as the link failure that ended a run.
func (c Client) AddEvent(ctx context.Context, note string, now time.Time) error {
	e := Event{Note: note, Time: now}

	url, _ := c.client.URL(c.runID)
	url += "/add-event"

	return c.makeRequest(ctx, url, e)
}

// Done closes the record with the terminal outcome.
func (c Client) Done(ctx context.Context, outcome string, now time.Time) error {
	url, _ := c.client.URL(c.runID)
	url += "/done"

	return c.makeRequest(ctx, url, map[string]any{"outcome": outcome, "time": now})
}

func (c Client) makeRequest(ctx context.Context, url string, body any) error {
	var bodyReader io.Reader = http.NoBody
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error encoding body: %w", err)
		}

		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bodyReader)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Add("Content-Type", "application/json")

	resp, err := c.client.MakeGenericRequest(req, nil)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	if resp.Response.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status code: %d, response: %v", resp.Response.StatusCode, resp.Body)
	}

	return nil
}
