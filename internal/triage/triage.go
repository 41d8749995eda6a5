// Package triage recommends a department for free-text symptoms using a
// generative model.
package triage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"vetclinic-booking/internal/model"
)

var (
	ErrEmptySymptoms    = errors.New("symptoms required")
	ErrUnavailable      = errors.New("symptom analysis not configured")
	ErrNoRecommendation = errors.New("no recommendation")
)

const maxSymptoms = 2000

type Recommendation struct {
	DepartmentID   string `json:"departmentId"`
	DepartmentName string `json:"departmentName"`
	Reason         string `json:"reason"`
}

type Config struct {
	APIKey    string
	Model     string
	Endpoint  string
	Timeout   time.Duration
	CacheSize int
}

// Analyzer calls the Gemini generateContent endpoint.
type Analyzer struct {
	client      *http.Client
	apiKey      string
	model       string
	endpoint    string
	departments []model.Department
	cache       *lru.Cache[string, Recommendation]
}

func New(cfg Config, departments []model.Department) (*Analyzer, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	cache, err := lru.New[string, Recommendation](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		client:      &http.Client{Timeout: cfg.Timeout},
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		departments: departments,
		cache:       cache,
	}, nil
}

func (a *Analyzer) Enabled() bool { return a != nil && a.apiKey != "" }

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Analyze maps symptoms to one department of the catalog.
func (a *Analyzer) Analyze(ctx context.Context, symptoms string) (Recommendation, error) {
	symptoms = strings.TrimSpace(symptoms)
	if symptoms == "" {
		return Recommendation{}, ErrEmptySymptoms
	}
	if utf8.RuneCountInString(symptoms) > maxSymptoms {
		symptoms = string([]rune(symptoms)[:maxSymptoms])
	}
	if !a.Enabled() {
		return Recommendation{}, ErrUnavailable
	}

	key := normalize(symptoms)
	if r, ok := a.cache.Get(key); ok {
		return r, nil
	}

	text, err := a.generate(ctx, a.prompt(symptoms))
	if err != nil {
		log.Printf("triage call: %v", err)
		return Recommendation{}, ErrNoRecommendation
	}

	var out struct {
		DepartmentID string `json:"departmentId"`
		Reason       string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		log.Printf("triage parse: %v", err)
		return Recommendation{}, ErrNoRecommendation
	}
	dept, ok := a.department(out.DepartmentID)
	if !ok {
		log.Printf("triage: unknown department %q", out.DepartmentID)
		return Recommendation{}, ErrNoRecommendation
	}

	r := Recommendation{DepartmentID: dept.ID, DepartmentName: dept.Name, Reason: strings.TrimSpace(out.Reason)}
	a.cache.Add(key, r)
	return r, nil
}

func (a *Analyzer) department(id string) (model.Department, bool) {
	for _, d := range a.departments {
		if d.ID == id {
			return d, true
		}
	}
	return model.Department{}, false
}

func (a *Analyzer) prompt(symptoms string) string {
	type dept struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	list := make([]dept, len(a.departments))
	for i, d := range a.departments {
		list[i] = dept{d.ID, d.Name, d.Description}
	}
	catalog, _ := json.Marshal(list)
	return fmt.Sprintf(`Pet symptoms: %q.
Available departments: %s.

Task: analyze the symptoms and recommend the most suitable department from the list.
Return a JSON object with "departmentId" (must match one of the provided ids) and "reason" (a brief explanation for the pet owner).`,
		symptoms, catalog)
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type schema struct {
	Type       string            `json:"type"`
	Properties map[string]schema `json:"properties,omitempty"`
	Required   []string          `json:"required,omitempty"`
}

type generateRequest struct {
	Contents         []content `json:"contents"`
	GenerationConfig struct {
		ResponseMimeType string `json:"responseMimeType"`
		ResponseSchema   schema `json:"responseSchema"`
	} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (a *Analyzer) generate(ctx context.Context, prompt string) (string, error) {
	var body generateRequest
	body.Contents = []content{{Role: "user", Parts: []part{{Text: prompt}}}}
	body.GenerationConfig.ResponseMimeType = "application/json"
	body.GenerationConfig.ResponseSchema = schema{
		Type: "OBJECT",
		Properties: map[string]schema{
			"departmentId": {Type: "STRING"},
			"reason":       {Type: "STRING"},
		},
		Required: []string{"departmentId", "reason"},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", a.endpoint, a.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", err
	}
	for _, c := range gr.Candidates {
		var sb strings.Builder
		for _, p := range c.Content.Parts {
			sb.WriteString(p.Text)
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			return s, nil
		}
	}
	return "", errors.New("empty response")
}
