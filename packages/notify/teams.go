package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TeamsNotifier sends notifications to Microsoft Teams via webhook
type TeamsNotifier struct {
	webhookURL string
	client     *http.Client
}

func NewTeamsNotifier(webhookURL string) *TeamsNotifier {
	return &TeamsNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TeamsNotifier) Name() string {
	return "teams"
}

// teamsMessage wraps one Adaptive Card.
type teamsMessage struct {
	Type        string      `json:"type"`
	Attachments []teamsCard `json:"attachments"`
}

type teamsCard struct {
	ContentType string           `json:"contentType"`
	ContentURL  *string          `json:"contentUrl"`
	Content     teamsCardContent `json:"content"`
}

type teamsCardContent struct {
	Schema  string       `json:"$schema"`
	Type    string       `json:"type"`
	Version string       `json:"version"`
	Body    []teamsBlock `json:"body"`
}

type teamsBlock struct {
	Type      string      `json:"type"`
	Size      string      `json:"size,omitempty"`
	Weight    string      `json:"weight,omitempty"`
	Text      string      `json:"text,omitempty"`
	Color     string      `json:"color,omitempty"`
	Wrap      bool        `json:"wrap,omitempty"`
	Facts     []teamsFact `json:"facts,omitempty"`
	Spacing   string      `json:"spacing,omitempty"`
	Separator bool        `json:"separator,omitempty"`
}

type teamsFact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

func (t *TeamsNotifier) Notify(summary *RunSummary) error {
	color := "good"
	title := "All test cases passed"

	if summary.FailedTests > 0 {
		color = "attention"
		title = fmt.Sprintf("%d test case(s) failed", summary.FailedTests)
	} else if summary.IsRecovery {
		title = "Test cases recovered"
	}

	body := []teamsBlock{
		{
			Type:   "TextBlock",
			Size:   "Large",
			Weight: "Bolder",
			Text:   title,
			Color:  color,
		},
		{
			Type:      "FactSet",
			Separator: true,
			Facts: []teamsFact{
				{Title: "Total", Value: fmt.Sprintf("%d", summary.TotalTests)},
				{Title: "Passed", Value: fmt.Sprintf("%d", summary.PassedTests)},
				{Title: "Failed", Value: fmt.Sprintf("%d", summary.FailedTests)},
				{Title: "Skipped", Value: fmt.Sprintf("%d", summary.SkippedTests)},
				{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String()},
			},
		},
	}

	if len(summary.FailedResults) > 0 {
		body = append(body, teamsBlock{
			Type:      "TextBlock",
			Text:      "**Failed test cases:**",
			Separator: true,
			Spacing:   "Medium",
		})
		for _, ft := range summary.FailedResults {
			body = append(body, teamsBlock{
				Type: "TextBlock",
				Text: fmt.Sprintf("- `%s` (%s): %s", ft.Name, ft.File, ft.Remarks),
				Wrap: true,
			})
		}
	}

	body = append(body, teamsBlock{
		Type:      "TextBlock",
		Text:      fmt.Sprintf("_apicase - %s_", time.Now().Format(time.RFC3339)),
		Separator: true,
		Spacing:   "Medium",
	})

	return t.send(teamsMessage{
		Type: "message",
		Attachments: []teamsCard{{
			ContentType: "application/vnd.microsoft.card.adaptive",
			Content: teamsCardContent{
				Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
				Type:    "AdaptiveCard",
				Version: "1.2",
				Body:    body,
			},
		}},
	})
}

func (t *TeamsNotifier) send(msg teamsMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal Teams message: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, t.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Teams notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("Teams API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
