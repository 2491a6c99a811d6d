package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/gait_computer/internal/config"
	"github.com/relabs-tech/gait_computer/internal/gait"
	"github.com/relabs-tech/gait_computer/internal/gps"
	"github.com/relabs-tech/gait_computer/internal/publish"
	"github.com/relabs-tech/gait_computer/internal/session"
	"github.com/relabs-tech/gait_computer/internal/stream"
)

func formatSnapshot(s stream.Snapshot) string {
	cal := "uncal"
	if s.CalibrationOK {
		cal = "cal"
	}
	return fmt.Sprintf("[LIVE] cadence=%6.1f spm  sway=%.3fg  tilt=%5.1f°  steps=%4d  %s",
		s.CadenceSPM, s.MLSwayRMS, s.TiltDeg, s.Steps, cal)
}

func formatStep(ev gait.StepEvent) string {
	side := "-"
	switch {
	case ev.MediolateralG > 0:
		side = "L"
	case ev.MediolateralG < 0:
		side = "R"
	}
	return fmt.Sprintf("[STEP] %s %s ml=%+.3fg", ev.Time.Format("15:04:05.000"), side, ev.MediolateralG)
}

func formatSummary(s session.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[SESSION] %s  %s  %d steps\n", s.ID, s.EndedAt.Sub(s.StartedAt).Round(time.Second), s.Steps)
	fmt.Fprintf(&b, "  cadence=%.1f spm  sway=%.3fg  asym=%.1f%%", s.Metrics.CadenceSPM, s.Metrics.MLSwayRMS, s.AsymStepTimePct)
	if s.Metrics.AvgStepTime != nil {
		fmt.Fprintf(&b, "  step=%.3fs", *s.Metrics.AvgStepTime)
	}
	if s.Metrics.CVStepTime != nil {
		fmt.Fprintf(&b, "  cv=%.3f", *s.Metrics.CVStepTime)
	}
	if s.GaitSpeedMps != nil {
		fmt.Fprintf(&b, "  speed=%.2f m/s", *s.GaitSpeedMps)
	}
	fmt.Fprintf(&b, "\n  score=%d  tags=%v  coaching=%v", s.Score.Total, s.Tags, s.CoachingTags)
	for _, n := range s.Score.Notes {
		fmt.Fprintf(&b, "\n  - %s", n)
	}
	return b.String()
}

func formatFix(f gps.Fix) string {
	return fmt.Sprintf("[GPS ]  time=%s lat=%.6f lon=%.6f speed=%.2fm/s course=%.1f° validity=%s",
		f.Time, f.Latitude, f.Longitude, f.SpeedMps(), f.CourseDeg, f.Validity)
}

func subscribePrint[T any](client mqtt.Client, topic string, qos byte, format func(T) string) error {
	token := client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.Printf("console: %s unmarshal error: %v", topic, err)
			return
		}
		fmt.Println(format(v))
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", topic)
	return nil
}

// RunConsoleMQTT prints recorder and GPS output until ctx is cancelled.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config) error {
	client, err := publish.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTT.Broker)

	if err := subscribePrint(client, cfg.MQTT.TopicLive, 0, formatSnapshot); err != nil {
		return err
	}
	if err := subscribePrint(client, cfg.MQTT.TopicSteps, 1, formatStep); err != nil {
		return err
	}
	if err := subscribePrint(client, cfg.MQTT.TopicSummary, 1, formatSummary); err != nil {
		return err
	}
	if err := subscribePrint(client, cfg.MQTT.TopicGPS, 0, formatFix); err != nil {
		return err
	}

	<-ctx.Done()
	log.Println("console: shutting down")
	return nil
}
