package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"

	"github.com/relabs-tech/gait_computer/internal/config"
	"github.com/relabs-tech/gait_computer/internal/gps"
	"github.com/relabs-tech/gait_computer/internal/publish"
)

// publishFixes publishes every RMC fix from r as retained JSON, so a
// subscriber that connects late still sees the last fix.
func publishFixes(r *gps.Reader, c publish.Publishing, topic string) (int, error) {
	n := 0
	for {
		fix, err := r.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		payload, err := json.Marshal(fix)
		if err != nil {
			log.Printf("GPS JSON marshal error: %v", err)
			continue
		}
		token := c.Publish(topic, 0, true, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("GPS publish error: %v", token.Error())
			continue
		}
		n++
		log.Printf("published GPS fix: %+v", fix)
	}
}

// RunGPSProducer opens the GPS serial port, parses NMEA sentences, and
// publishes fixes to the configured GPS topic until ctx is cancelled.
func RunGPSProducer(ctx context.Context, cfg *config.Config) error {
	client, err := publish.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientIDGPS)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("GPS producer connected to MQTT broker at %s", cfg.MQTT.Broker)

	port, err := gps.OpenSerial(cfg.GPS.SerialPort, cfg.GPS.BaudRate)
	if err != nil {
		return err
	}
	log.Printf("GPS serial port opened on %s at %d baud", cfg.GPS.SerialPort, cfg.GPS.BaudRate)

	// Closing the port unblocks the pending read.
	stop := context.AfterFunc(ctx, func() { port.Close() })
	defer func() {
		if stop() {
			port.Close()
		}
	}()

	r := gps.NewReader(port)
	n, err := publishFixes(r, client, cfg.MQTT.TopicGPS)
	log.Printf("GPS producer: %d fixes published, %d bad sentences", n, r.Skipped())
	if ctx.Err() != nil {
		return nil
	}
	return err
}
