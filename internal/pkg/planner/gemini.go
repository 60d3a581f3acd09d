package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// contentGenerator is the part of *genai.GenerativeModel the scheduler uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini asks a Gemini model for the schedule and validates the answer before
// handing it out. Any malformed or incomplete answer is ErrAutoScheduleFailed.
type Gemini struct {
	client *genai.Client
	model  contentGenerator
}

// NewGemini connects to the Gemini API with apiKey.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"taskId":        {Type: genai.TypeString},
				"timeSlotStart": {Type: genai.TypeString},
				"timeSlotEnd":   {Type: genai.TypeString},
			},
			Required: []string{"taskId", "timeSlotStart", "timeSlotEnd"},
		},
	}

	log.Infof("[Scheduler] Gemini model %s initialized", modelName)
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Name() string {
	return "gemini"
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *Gemini) Schedule(ctx context.Context, req Request) ([]Assignment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(req.Tasks) == 0 {
		return []Assignment{}, nil
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(buildPrompt(req)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAutoScheduleFailed, err)
	}

	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
	}

	out, err := parseAssignments(sb.String(), req.location())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAutoScheduleFailed, err)
	}
	return ValidateAssignments(req, out)
}

type promptTask struct {
	ID               uint   `json:"id"`
	Title            string `json:"title"`
	EstimatedMinutes int    `json:"estimatedMinutes"`
	Quadrant         string `json:"quadrant"`
}

type promptBusy struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

const localStamp = "2006-01-02T15:04:05"

func buildPrompt(req Request) string {
	loc := req.location()

	tasks := make([]promptTask, 0, len(req.Tasks))
	for _, t := range req.Tasks {
		tasks = append(tasks, promptTask{
			ID:               t.ID,
			Title:            t.Title,
			EstimatedMinutes: t.Minutes(req.defaultMinutes()),
			Quadrant:         t.Quadrant,
		})
	}
	busy := make([]promptBusy, 0, len(req.Busy))
	for _, iv := range sortedValid(req.Busy) {
		busy = append(busy, promptBusy{Start: iv.Start.In(loc).Format(localStamp), End: iv.End.In(loc).Format(localStamp)})
	}
	tasksJSON, _ := json.Marshal(tasks)
	busyJSON, _ := json.Marshal(busy)

	return fmt.Sprintf(`You are a productivity assistant. Schedule the following tasks on %s.
Working hours are %s to %s (local time).
These time ranges are already busy and must not be used:
%s

Tasks (DO_FIRST is most urgent, then SCHEDULE, DELEGATE, ELIMINATE):
%s

Rules:
- every task gets exactly one slot whose length equals estimatedMinutes
- slots must not overlap each other or the busy ranges
- prefer placing urgent tasks earlier; if the day is full, place the remaining tasks after working hours on the same date
- use local times formatted as YYYY-MM-DDTHH:MM:SS

Return a JSON array of objects with the fields taskId, timeSlotStart and timeSlotEnd.`,
		req.Date,
		req.WorkStart.In(loc).Format("15:04"),
		req.WorkEnd.In(loc).Format("15:04"),
		string(busyJSON),
		string(tasksJSON),
	)
}

type rawAssignment struct {
	TaskID        json.RawMessage `json:"taskId"`
	TimeSlotStart string          `json:"timeSlotStart"`
	TimeSlotEnd   string          `json:"timeSlotEnd"`
}

// parseAssignments accepts the model's JSON, with or without markdown fences,
// and numeric or quoted task ids.
func parseAssignments(text string, loc *time.Location) ([]Assignment, error) {
	text = extractJSON(text)
	if text == "" {
		return nil, errors.New("empty response")
	}

	var raw []rawAssignment
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("response is not a JSON array: %w", err)
	}

	out := make([]Assignment, 0, len(raw))
	for _, r := range raw {
		id, err := strconv.ParseUint(strings.Trim(strings.TrimSpace(string(r.TaskID)), `"`), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid taskId %s", string(r.TaskID))
		}
		start, err := ParseTimestamp(r.TimeSlotStart, loc)
		if err != nil {
			return nil, err
		}
		end, err := ParseTimestamp(r.TimeSlotEnd, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, Assignment{TaskID: uint(id), Start: start, End: end})
	}
	return out, nil
}

func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "["); i > 0 {
		text = text[i:]
	}
	if i := strings.LastIndex(text, "]"); i >= 0 && i < len(text)-1 {
		text = text[:i+1]
	}
	return text
}
