package app

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/gait_computer/internal/config"
	"github.com/relabs-tech/gait_computer/internal/publish"
	"github.com/relabs-tech/gait_computer/internal/session"
	"github.com/relabs-tech/gait_computer/internal/stream"
)

const (
	screenW = 128
	screenH = 64
)

// displayData holds the latest recorder output for the screen.
type displayData struct {
	mu      sync.RWMutex
	live    *stream.Snapshot
	summary *session.Summary
}

func (d *displayData) setLive(s stream.Snapshot) {
	d.mu.Lock()
	d.live = &s
	d.mu.Unlock()
}

func (d *displayData) setSummary(s session.Summary) {
	d.mu.Lock()
	d.summary = &s
	d.mu.Unlock()
}

// view copies the pointers out so rendering runs without the lock.
func (d *displayData) view() (*stream.Snapshot, *session.Summary) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.live, d.summary
}

func drawLines(lines ...string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, screenW, screenH))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, l := range lines {
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawString(l)
	}
	return img
}

// renderScreen shows the live walk, or the last session summary when the
// live data is older than that summary.
func renderScreen(live *stream.Snapshot, sum *session.Summary) *image1bit.VerticalLSB {
	switch {
	case sum != nil && (live == nil || !live.Time.After(sum.EndedAt)):
		tag := "no pattern"
		if len(sum.Tags) > 0 {
			tag = string(sum.Tags[0])
		}
		return drawLines(
			fmt.Sprintf("Score %d", sum.Score.Total),
			fmt.Sprintf("%.0f spm %d st", sum.Metrics.CadenceSPM, sum.Steps),
			fmt.Sprintf("Asym %.1f%%", sum.AsymStepTimePct),
			tag,
		)
	case live != nil:
		cal := "CAL OK"
		if !live.CalibrationOK {
			cal = "NOT CAL"
		}
		return drawLines(
			fmt.Sprintf("%5.1f spm", live.CadenceSPM),
			fmt.Sprintf("Sway %.3fg", live.MLSwayRMS),
			fmt.Sprintf("Steps %d", live.Steps),
			fmt.Sprintf("%s %4.1f", cal, live.TiltDeg),
		)
	default:
		return drawLines("Gait Pi", "Waiting for", "recorder...")
	}
}

func subscribeDisplay[T any](client mqtt.Client, topic string, set func(T)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.Printf("display: %s unmarshal error: %v", topic, err)
			return
		}
		set(v)
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", topic)
	return nil
}

// RunDisplay drives an SSD1306 OLED from the recorder's MQTT output until
// ctx is cancelled.
func RunDisplay(ctx context.Context, cfg *config.Config) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.Display.I2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, cfg.Display.I2CAddr, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", cfg.Display.I2CAddr)
	defer dev.Halt()

	if err := dev.Draw(dev.Bounds(), renderScreen(nil, nil), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	client, err := publish.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTT.Broker)

	data := &displayData{}
	if err := subscribeDisplay(client, cfg.MQTT.TopicLive, data.setLive); err != nil {
		return err
	}
	if err := subscribeDisplay(client, cfg.MQTT.TopicSummary, data.setSummary); err != nil {
		return err
	}

	ticker := time.NewTicker(cfg.Display.UpdateInterval)
	defer ticker.Stop()
	log.Println("display: starting update loop")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			live, sum := data.view()
			if err := dev.Draw(dev.Bounds(), renderScreen(live, sum), image.Point{}); err != nil {
				log.Printf("display: error updating display: %v", err)
			}
		}
	}
}
