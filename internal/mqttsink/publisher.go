package mqttsink

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"gpio_control_server/config"
	"gpio_control_server/internal/lockout"
	"gpio_control_server/internal/motion"
	"gpio_control_server/internal/switches"
	"gpio_control_server/pkg/logger"
)

// Publisher forwards movement, switch and lockout events to an MQTT broker.
// Publishing never blocks a command; a disconnected broker drops events.
type Publisher struct {
	cfg    config.MQTTConfig
	client mqtt.Client
	logger *logger.Logger
}

func NewPublisher(cfg config.MQTTConfig, log *logger.Logger) *Publisher {
	return &Publisher{cfg: cfg, logger: log.WithComponent("mqtt")}
}

// Start connects to the broker, retrying in the background
func (p *Publisher) Start() error {
	opts := mqtt.NewClientOptions().
		AddBroker(p.brokerURL()).
		SetClientID(p.cfg.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(true)

	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}

	if p.cfg.UseTLS {
		tlsCfg, err := tlsConfig(p.cfg.CACertPath)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		p.logger.Logger.Error().Err(err).Msg("MQTT connection lost")
	}
	opts.OnConnect = func(mqtt.Client) {
		p.logger.Logger.Info().Str("broker", p.brokerURL()).Msg("MQTT connected")
	}

	p.client = mqtt.NewClient(opts)
	if tk := p.client.Connect(); tk.Wait() && tk.Error() != nil {
		return tk.Error()
	}
	return nil
}

func (p *Publisher) Stop() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(500)
	}
}

func (p *Publisher) IsConnected() bool {
	return p.client != nil && p.client.IsConnected()
}

func (p *Publisher) brokerURL() string {
	scheme := "tcp"
	if p.cfg.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, p.cfg.BrokerHost, p.cfg.BrokerPort)
}

func tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file %s", caFile)
	}
	cfg.RootCAs = cp
	return cfg, nil
}

func (p *Publisher) topic(parts ...any) string {
	t := p.cfg.TopicPrefix
	for _, part := range parts {
		t += fmt.Sprintf("/%v", part)
	}
	return t
}

func (p *Publisher) publish(topic string, v any) {
	if !p.IsConnected() {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		p.logger.Logger.Error().Err(err).Str("topic", topic).Msg("Failed to encode MQTT payload")
		return
	}
	tk := p.client.Publish(topic, 1, false, payload)
	go func() {
		if tk.WaitTimeout(5*time.Second) && tk.Error() != nil {
			p.logger.Logger.Error().Err(tk.Error()).Str("topic", topic).Msg("Failed to publish MQTT message")
		}
	}()
}

// Movement publishes to <prefix>/steppers/<id>/movement
func (p *Publisher) Movement(ev motion.Event) {
	p.publish(p.topic("steppers", ev.DeviceID, "movement"), ev)
}

// SwitchEdge publishes to <prefix>/switches/<id>/edge
func (p *Publisher) SwitchEdge(ev switches.Event) {
	p.publish(p.topic("switches", ev.DeviceID, "edge"), ev)
}

// Lockout publishes to <prefix>/lockouts/<device_type>/<id>
func (p *Publisher) Lockout(ev lockout.Event) {
	p.publish(p.topic("lockouts", ev.DeviceType, ev.DeviceID), ev)
}
