// Command keypad-sensor debounces GPIO keypad inputs and publishes key events to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/keypad-sensor/internal/debounce"
	"github.com/sweeney/keypad-sensor/internal/gpio"
	"github.com/sweeney/keypad-sensor/internal/mqtt"
	"github.com/sweeney/keypad-sensor/internal/status"
	"github.com/sweeney/keypad-sensor/internal/web"
)

func main() {
	tick := flag.Duration("tick", 10*time.Millisecond, "Sampling tick period")
	repeatStart := flag.Int("repeat-start", debounce.DefaultRepeatStart, "Held ticks before the first repeat")
	repeatNext := flag.Int("repeat-next", debounce.DefaultRepeatNext, "Ticks between subsequent repeats")
	repeatMask := flag.Uint("repeat-mask", 0x0F, "Key mask eligible for repeat events")
	shortLongMask := flag.Uint("short-long-mask", 0x02, "Key mask reported as SHORT/LONG instead of PRESS")
	pinsFlag := flag.String("pins", "26,16,20,21", "Comma-separated BCM pins, key 0 first (max 8)")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	printState := flag.Bool("print-state", false, "Print current key state and exit")
	httpAddr := flag.String("http", ":80", "HTTP status address (empty to disable)")
	wsBroker := flag.String("ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)

	flag.Parse()

	pins, err := parsePins(*pinsFlag)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if *repeatMask > 0xFF || *shortLongMask > 0xFF {
		log.Fatalf("fatal: masks must fit in 8 bits")
	}

	ws := resolveWSBroker(*wsBroker, *broker)
	cfg := runConfig{
		tick:          *tick,
		repeatStart:   *repeatStart,
		repeatNext:    *repeatNext,
		repeatMask:    uint8(*repeatMask),
		shortLongMask: uint8(*shortLongMask),
		pins:          pins,
		broker:        *broker,
		heartbeat:     *heartbeat,
		printState:    *printState,
		httpAddr:      *httpAddr,
		wsBroker:      ws,
	}
	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

type runConfig struct {
	tick          time.Duration
	repeatStart   int
	repeatNext    int
	repeatMask    uint8
	shortLongMask uint8
	pins          []int
	broker        string
	heartbeat     time.Duration
	printState    bool
	httpAddr      string
	wsBroker      string
}

func run(cfg runConfig) error {
	// Initialize GPIO
	gpioReader, err := gpio.NewRealReader(cfg.pins)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer gpioReader.Close()

	// Print state mode
	if cfg.printState {
		keys, err := gpioReader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		for i, pin := range cfg.pins {
			fmt.Printf("key %d (BCM %d): %s\n", i, pin, stateString(keys&(1<<i) != 0))
		}
		return nil
	}

	// Long presses ride on the repeat machinery: a short/long key outside
	// the repeat mask can never report LONG.
	if orphan := cfg.shortLongMask &^ cfg.repeatMask; orphan != 0 {
		log.Printf("warning: short/long keys %v are not repeat-eligible and will never report LONG", debounce.KeysOf(orphan))
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(cfg.broker)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		TickMs:           cfg.tick.Milliseconds(),
		RepeatStartTicks: cfg.repeatStart,
		RepeatNextTicks:  cfg.repeatNext,
		RepeatMask:       cfg.repeatMask,
		ShortLongMask:    cfg.shortLongMask,
		HeartbeatMs:      cfg.heartbeat.Milliseconds(),
		Broker:           cfg.broker,
		HTTPAddr:         cfg.httpAddr,
		WSBroker:         cfg.wsBroker,
		Pins:             cfg.pins,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.httpAddr != "" {
		srv := web.New(cfg.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.httpAddr)
	}

	log.Printf("started: tick=%v repeat=%d/%d mask=%#02x short-long=%#02x broker=%s heartbeat=%v",
		cfg.tick, cfg.repeatStart, cfg.repeatNext, cfg.repeatMask, cfg.shortLongMask, cfg.broker, cfg.heartbeat)

	ticker := time.NewTicker(cfg.tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(gpioReader, publisher, publisher, tracker, cfg, time.Now, ticker.C, sigCh)
}

func runLoop(gpioReader gpio.Reader, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, cfg runConfig, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()
	deb := debounce.NewDebouncer(debounce.Config{
		RepeatStart: cfg.repeatStart,
		RepeatNext:  cfg.repeatNext,
		RepeatMask:  cfg.repeatMask,
	}, startTime)

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			raw, err := gpioReader.Read()
			if err != nil {
				log.Printf("gpio read error: %v", err)
				continue
			}

			deb.Tick(raw)
			held := deb.State()

			// Short/long keys are consumed first so they never also
			// report as plain presses; repeats for short/long keys are
			// absorbed by the long-press query.
			shorts := deb.ConsumeShortPress(cfg.shortLongMask)
			longs := deb.ConsumeLongPress(cfg.shortLongMask)
			presses := deb.ConsumePress(0xFF &^ cfg.shortLongMask)
			repeats := deb.ConsumeRepeat(cfg.repeatMask &^ cfg.shortLongMask)

			publishEvents(publisher, t, debounce.EventShort, shorts, held)
			publishEvents(publisher, t, debounce.EventLong, longs, held)
			publishEvents(publisher, t, debounce.EventPress, presses, held)
			publishEvents(publisher, t, debounce.EventRepeat, repeats, held)

			// Check for heartbeat
			if hbData := deb.CheckHeartbeat(t, cfg.heartbeat); hbData != nil {
				log.Printf("heartbeat: uptime=%v presses=%d repeats=%d shorts=%d longs=%d",
					hbData.Uptime, hbData.Counts.Presses, hbData.Counts.Repeats, hbData.Counts.Shorts, hbData.Counts.Longs)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					if mqttStatus != nil {
						tracker.SetMQTTConnected(mqttStatus.IsConnected())
					}
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					tracker.Update(deb.State(), deb.Ticks(), deb.EventCountsSnapshot())
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			// Update status tracker for HTTP/LED consumers
			if tracker != nil {
				tracker.Update(deb.State(), deb.Ticks(), deb.EventCountsSnapshot())
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}
		}
	}
}

// publishEvents emits one KeyEvent per set bit of mask.
func publishEvents(publisher mqtt.Publisher, t time.Time, typ debounce.EventType, mask, held uint8) {
	for _, key := range debounce.KeysOf(mask) {
		event := debounce.KeyEvent{
			Timestamp: t,
			Type:      typ,
			Key:       key,
			Held:      held,
		}
		log.Printf("event: %s key=%d held=%v", typ, key, debounce.KeysOf(held))
		if err := publisher.Publish(event); err != nil {
			log.Printf("publish error: %v", err)
			// Don't crash on publish failure
		}
	}
}

// parsePins parses the -pins flag: comma-separated BCM offsets, key 0 first.
func parsePins(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) > gpio.MaxKeys {
		return nil, fmt.Errorf("pins: at most %d entries, got %d", gpio.MaxKeys, len(parts))
	}
	pins := make([]int, 0, len(parts))
	seen := map[int]bool{}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("pins: empty entry")
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("pins: bad entry %q: %w", p, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("pins: negative pin %d", n)
		}
		if seen[n] {
			return nil, fmt.Errorf("pins: duplicate pin %d", n)
		}
		seen[n] = true
		pins = append(pins, n)
	}
	return pins, nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func stateString(pressed bool) string {
	if pressed {
		return "PRESSED"
	}
	return "released"
}

// resolveWSBroker converts the -ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; empty disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse --broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
