package ingestor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	config "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Config"
	logger "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Logger"
)

type inbound struct {
	topic   string
	payload []byte
}

// Ingestor owns the broker connection: it subscribes to the device and
// sensor topic families, buffers inbound messages and feeds them to the
// pipeline on a single consumer goroutine.
type Ingestor struct {
	cfg        config.MQTTConfig
	pipeline   *Pipeline
	mqttClient mqtt.Client
	msgCh      chan inbound
	wg         sync.WaitGroup
	logger     *logger.Logger
}

var subscriptions = []string{
	"device/+/heartbeat",
	"device/+/connection",
	"device/+/report",
	"sensor/+/data",
}

func New(cfg config.MQTTConfig, pipeline *Pipeline, log *logger.Logger) *Ingestor {
	return &Ingestor{
		cfg:      cfg,
		pipeline: pipeline,
		msgCh:    make(chan inbound, 4096),
		logger:   log.WithComponent("ingestor"),
	}
}

func (i *Ingestor) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(i.brokerURL()).
		SetClientID(i.cfg.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(i.cfg.KeepAlive).
		SetPingTimeout(i.cfg.PingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false)

	if i.cfg.BrokerUser != "" {
		opts.SetUsername(i.cfg.BrokerUser)
		opts.SetPassword(i.cfg.BrokerPass)
	}

	if i.cfg.UseTLS {
		tlsCfg, err := i.tlsConfig(i.cfg.CACertPath)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		i.logger.ErrorWithError(err, "MQTT connection lost")
	}
	opts.OnConnect = func(c mqtt.Client) {
		for _, topic := range subscriptions {
			i.logger.WithField("topic", topic).Info("MQTT connected, subscribing")
			if token := c.Subscribe(topic, 1, i.onMessage); token.Wait() && token.Error() != nil {
				i.logger.ErrorWithError(token.Error(), "failed to subscribe to "+topic)
			}
		}
	}

	i.mqttClient = mqtt.NewClient(opts)
	if tk := i.mqttClient.Connect(); tk.Wait() && tk.Error() != nil {
		return tk.Error()
	}

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.consume(ctx)
	}()

	return nil
}

func (i *Ingestor) Stop() {
	if i.mqttClient != nil && i.mqttClient.IsConnected() {
		i.mqttClient.Disconnect(500)
	}
	close(i.msgCh)
	i.wg.Wait()
}

func (i *Ingestor) IsConnected() bool {
	return i.mqttClient != nil && i.mqttClient.IsConnected()
}

// Client exposes the underlying connection for the command publisher,
// which shares it rather than holding a second session.
func (i *Ingestor) Client() mqtt.Client {
	return i.mqttClient
}

func (i *Ingestor) onMessage(_ mqtt.Client, m mqtt.Message) {
	payload := make([]byte, len(m.Payload()))
	copy(payload, m.Payload())

	select {
	case i.msgCh <- inbound{topic: m.Topic(), payload: payload}:
	default:
		i.logger.WithField("topic", m.Topic()).Warn("inbound buffer full, dropping message")
	}
}

func (i *Ingestor) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-i.msgCh:
			if !ok {
				return
			}
			i.process(ctx, msg)
		}
	}
}

func (i *Ingestor) process(ctx context.Context, msg inbound) {
	event, err := ParseMessage(msg.topic, msg.payload)
	if err != nil {
		i.logger.WithField("topic", msg.topic).
			WithField("error", err.Error()).
			Warn("discarding unparseable message")
		return
	}

	if err := i.pipeline.Handle(ctx, event); err != nil {
		i.logger.ErrorWithError(err, "event handling failed on "+msg.topic)
	}
}

func (i *Ingestor) brokerURL() string {
	scheme := "tcp"
	if i.cfg.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, i.cfg.BrokerHost, i.cfg.BrokerPort)
}

func (i *Ingestor) tlsConfig(caFile string) (*tls.Config, error) {
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
		return nil, fmt.Errorf("bad CA file")
	}
	cfg.RootCAs = cp
	return cfg, nil
}
