package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"market-flight/internal/telemetry"
)

// Notification carries the context of a breached sequence.
type Notification struct {
	RunID        int64
	Label        string
	Mode         string
	ScenarioType string
	Seed         uint64
	Summary      telemetry.Summary
	BreachFrame  telemetry.Frame
	Channels     []string
}

// Notifier delivers breach notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier posts messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls sendMessage with the rendered text.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Int64("run_id", note.RunID).
		Int("first_breach", note.Summary.FirstBreach).
		Str("channels", strings.Join(note.Channels, ",")).
		Msg("breach alert sent (telegram)")
	return nil
}

func renderMessage(note Notification) string {
	s := note.Summary
	builder := strings.Builder{}
	builder.WriteString("[Flight Envelope Breach]\n")
	if note.RunID > 0 {
		builder.WriteString(fmt.Sprintf("Run: #%d %s\n", note.RunID, note.Label))
	} else if note.Label != "" {
		builder.WriteString(fmt.Sprintf("Run: %s\n", note.Label))
	}
	mode := note.Mode
	if note.ScenarioType != "" {
		mode = fmt.Sprintf("%s/%s", note.Mode, note.ScenarioType)
	}
	builder.WriteString(fmt.Sprintf("Mode: %s (seed %d)\n", mode, note.Seed))
	builder.WriteString(fmt.Sprintf("First breach: frame %d of %d at t=%s\n",
		s.FirstBreach, s.Frames, fixed(note.BreachFrame.Timestamp, 2)))
	builder.WriteString(fmt.Sprintf("Spot: %s (range %s - %s)\n",
		fixed(note.BreachFrame.Spot, 2), fixed(s.MinSpot, 2), fixed(s.MaxSpot, 2)))
	builder.WriteString(fmt.Sprintf("Airspeed X: %s  Load Y: %s  Wall Z: %s\n",
		fixed(note.BreachFrame.X, 3), fixed(note.BreachFrame.Y, 3), fixed(note.BreachFrame.Z, 3)))
	builder.WriteString(fmt.Sprintf("Rupture frames: %d, breach frames: %d\n",
		s.ByRegime[telemetry.RegimeRupture], s.ByFlag[telemetry.FlagBreach]))
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	return builder.String()
}

func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

var _ Notifier = (*TelegramNotifier)(nil)
