// Package ai turns raw lab-report text into a structured interpretation by
// calling an OpenAI-compatible chat/completions endpoint under a strict JSON
// contract.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// maxPromptChars caps the report text included in the prompt.
const maxPromptChars = 12000

// maxReferenceHints caps the reference entries included in the prompt.
const maxReferenceHints = 40

// Config for the interpretation client.
type Config struct {
	APIKey      string        // bearer token
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // e.g., "gpt-4o-mini"
	Temperature float64       // 0..2
	Timeout     time.Duration // http client timeout
}

// Client calls the model endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a Client with defaults applied for unset config fields.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// PatientContext is what the caller already knows about the patient.
type PatientContext struct {
	Name string
	Age  string
	Sex  string
}

// ReferenceHint is a catalog reference range passed to the model so its
// inline ranges agree with the clinic's catalog.
type ReferenceHint struct {
	Name  string
	Range string
}

// Request carries the inputs of one interpretation.
type Request struct {
	Text       string
	Patient    PatientContext
	References []ReferenceHint
}

// PatientInfo is the patient block of an interpretation.
type PatientInfo struct {
	Name string `json:"name,omitempty"`
	Age  string `json:"age,omitempty"`
	Sex  string `json:"sex,omitempty"`
}

// ExamRow is one exam extracted from the report.
type ExamRow struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Unit      string `json:"unit,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// Interpretation is the structured output of the model.
type Interpretation struct {
	Patient       PatientInfo `json:"patient"`
	Exams         []ExamRow   `json:"exams"`
	Summary       string      `json:"summary"`
	Prescriptions []string    `json:"prescriptions,omitempty"`
	Orientations  []string    `json:"orientations,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Interpret sends the report text to the model and returns the validated
// interpretation. A response violating the JSON contract triggers exactly one
// corrective retry; a second violation fails with Kind "malformed".
func (c *Client) Interpret(ctx context.Context, req Request) (Interpretation, error) {
	start := time.Now()
	schema := BuildInterpretationSchema()

	messages := []chatMessage{
		{Role: "system", Content: buildSystemPrompt()},
		{Role: "user", Content: buildUserPrompt(req)},
		{Role: "system", Content: "JSON Schema:\n" + mustJSON(schema)},
	}

	c.logger.Info().
		Str("model", c.cfg.Model).
		Int("text_len", len(req.Text)).
		Int("references", len(req.References)).
		Msg("ai interpret start")

	content, err := c.complete(ctx, messages)
	if err != nil {
		return Interpretation{}, err
	}

	interp, vErr := decodeInterpretation(schema, content)
	if vErr == nil {
		c.logger.Info().
			Int("exams", len(interp.Exams)).
			Dur("elapsed", time.Since(start)).
			Msg("ai interpret ok")
		return interp, nil
	}

	// One corrective retry naming the violation.
	c.logger.Warn().Err(vErr).Msg("ai response violated contract, retrying once")
	messages = append(messages,
		chatMessage{Role: "assistant", Content: content},
		chatMessage{Role: "user", Content: "Your previous answer was rejected: " + vErr.Error() +
			". Return ONLY a JSON object that satisfies the schema exactly. No prose, no markdown fences."},
	)

	content, err = c.complete(ctx, messages)
	if err != nil {
		return Interpretation{}, err
	}

	interp, vErr = decodeInterpretation(schema, content)
	if vErr != nil {
		c.logger.Error().Err(vErr).Msg("ai response violated contract after retry")
		return Interpretation{}, newError(KindMalformed, vErr)
	}

	c.logger.Info().
		Int("exams", len(interp.Exams)).
		Dur("elapsed", time.Since(start)).
		Bool("retried", true).
		Msg("ai interpret ok")
	return interp, nil
}

// decodeInterpretation validates content against the contract and unmarshals
// it. Responses are never partially accepted.
func decodeInterpretation(schema map[string]any, content string) (Interpretation, error) {
	raw := []byte(strings.TrimSpace(stripFences(content)))
	if err := ValidateJSONAgainstSchema(schema, raw); err != nil {
		return Interpretation{}, err
	}
	var interp Interpretation
	if err := json.Unmarshal(raw, &interp); err != nil {
		return Interpretation{}, fmt.Errorf("unmarshal interpretation: %w", err)
	}
	return interp, nil
}

// stripFences removes a markdown code fence around a JSON payload, which
// some models add despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return s
}

// complete performs one chat/completions call and returns the first choice's
// content. Transport and status failures are classified into interpretation
// error kinds.
func (c *Client) complete(ctx context.Context, messages []chatMessage) (string, error) {
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages":        messages,
	}

	b, err := json.Marshal(body)
	if err != nil {
		return "", newError(KindUpstream, fmt.Errorf("marshal request: %w", err))
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return "", newError(KindUpstream, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", newError(classifyTransportError(err), err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return "", newError(KindUpstream, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("model endpoint status %d: %s", resp.StatusCode, truncate(buf.String(), 2048))
		return "", newError(classifyStatus(resp.StatusCode), err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(buf.Bytes(), &cc); err != nil {
		return "", newError(KindUpstream, fmt.Errorf("decode response envelope: %w", err))
	}
	if len(cc.Choices) == 0 {
		return "", newError(KindUpstream, fmt.Errorf("no choices in model response"))
	}

	return cc.Choices[0].Message.Content, nil
}

func classifyTransportError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindUpstream
}

func classifyStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindUpstream
	}
}

func buildSystemPrompt() string {
	parts := []string{
		"You are a clinical lab-report interpreter. Return ONLY JSON that matches the JSON Schema provided.",
		"Transcribe every exam you find: name, value as printed (keep comma decimals as printed), unit, and the reference range printed next to it if any.",
		"Write 'summary' as a short plain-language overview of the findings for a clinician.",
		"List any prescribed follow-ups under 'prescriptions' and lifestyle or collection guidance under 'orientations'.",
		"Fill 'patient' from the report header when present.",
		"Never invent values. If a field is not present, omit it. Never output null.",
	}
	return strings.Join(parts, " ")
}

func buildUserPrompt(req Request) string {
	var b strings.Builder

	if req.Patient.Name != "" || req.Patient.Age != "" || req.Patient.Sex != "" {
		b.WriteString("Patient context: ")
		b.WriteString("name=" + req.Patient.Name)
		b.WriteString(" age=" + req.Patient.Age)
		b.WriteString(" sex=" + req.Patient.Sex)
		b.WriteString("\n\n")
	}

	refs := req.References
	if len(refs) > maxReferenceHints {
		refs = refs[:maxReferenceHints]
	}
	if len(refs) > 0 {
		b.WriteString("Clinic reference ranges (prefer these over printed ranges):\n")
		for _, r := range refs {
			b.WriteString("- ")
			b.WriteString(r.Name)
			b.WriteString(": ")
			b.WriteString(r.Range)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Report text:\n")
	text := req.Text
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}
	b.WriteString(text)
	b.WriteString("\n\nReturn ONLY JSON that matches the provided schema.")
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
