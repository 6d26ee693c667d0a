package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pzverkov/qstp-go/pkg/handshake"
	"github.com/pzverkov/qstp-go/pkg/mesh"
	"github.com/pzverkov/qstp-go/pkg/metrics"
	"github.com/pzverkov/qstp-go/pkg/qace"
	"github.com/pzverkov/qstp-go/pkg/qstp"
)

type simConfig struct {
	frames    int
	threat    int
	cipher    string
	engine    string
	seed      int64
	logLevel  string
	logFormat string
	tracing   string
}

func (c simConfig) suite() (qstp.CipherSuite, error) {
	switch c.cipher {
	case "aes-gcm":
		return qstp.SuiteAES256GCM, nil
	case "chacha20":
		return qstp.SuiteChaCha20Poly1305, nil
	default:
		return 0, fmt.Errorf("unknown cipher %q (want aes-gcm or chacha20)", c.cipher)
	}
}

func (c simConfig) qaceEngine() (qace.Engine, error) {
	switch c.engine {
	case "simple":
		return qace.NewSimpleQace(), nil
	case "ga":
		config := qace.DefaultGaConfig()
		config.Seed = c.seed
		if config.Seed == 0 {
			// Both endpoints evaluate with the same engine; a pinned seed
			// keeps their decisions identical so the tunnels stay in step.
			config.Seed = time.Now().UnixNano()
		}
		return qace.NewGaQace(config, qace.DefaultWeights()), nil
	default:
		return nil, fmt.Errorf("unknown engine %q (want simple or ga)", c.engine)
	}
}

// runSim drives both tunnel endpoints from one goroutine: establish and
// hydrate, push traffic through the in-memory mesh, inject a threat
// spike through QACE on both ends, then prove traffic still flows on the
// new route.
func runSim(config simConfig) error {
	suite, err := config.suite()
	if err != nil {
		return err
	}
	engine, err := config.qaceEngine()
	if err != nil {
		return err
	}

	format := metrics.FormatText
	if config.logFormat == "json" {
		format = metrics.FormatJSON
	}
	log := metrics.NewLogger(
		metrics.WithOutput(os.Stdout),
		metrics.WithLevel(metrics.ParseLevel(config.logLevel)),
		metrics.WithFormat(format),
		metrics.WithName("qstp-sim"),
	)

	var simpleTracer *metrics.SimpleTracer
	switch config.tracing {
	case "simple":
		simpleTracer = metrics.NewSimpleTracer()
		metrics.SetTracer(simpleTracer)
	case "otel":
		if !metrics.OTelEnabled() {
			log.Warn("otel tracing requested but binary built without -tags otel")
		}
		metrics.SetTracer(metrics.NewOTelTracer("qstp-sim"))
	}
	ctx := context.Background()

	composer, err := handshake.NewDefaultComposer()
	if err != nil {
		return fmt.Errorf("composer: %w", err)
	}

	primary := mesh.RoutePlan{
		Topic: "mesh/sim/primary",
		Hops:  []mesh.PeerID{mesh.DerivePeerID("relay-a"), mesh.DerivePeerID("relay-b")},
		QoS:   mesh.QoSLowLatency,
	}
	fallback := mesh.RoutePlan{
		Topic: "mesh/sim/fallback",
		Hops:  []mesh.PeerID{mesh.DerivePeerID("relay-c")},
		QoS:   mesh.QoSControl,
		Epoch: 1,
	}

	store := qstp.NewInMemoryTupleStore()
	_, endEstablish := metrics.StartSpan(ctx, metrics.SpanEstablish, metrics.WithAttributes(
		metrics.SpanAttributes{Role: "initiator", CipherSuite: suite.String()}.ToMap()))
	est, err := qstp.Establish(composer, []byte("client=sim"), mesh.DerivePeerID("responder"), &primary, store, suite)
	endEstablish(err)
	if err != nil {
		return fmt.Errorf("establish: %w", err)
	}
	initiator := est.Tunnel

	installed := initiator.Route()
	_, endHydrate := metrics.StartSpan(ctx, metrics.SpanHydrate, metrics.WithAttributes(
		metrics.SpanAttributes{Role: "responder", CipherSuite: suite.String()}.ToMap()))
	responder, err := qstp.Hydrate(est.SessionSecret, mesh.DerivePeerID("initiator"), &installed,
		&est.PeerMetadata, qstp.RoleResponder, suite)
	endHydrate(err)
	if err != nil {
		return fmt.Errorf("hydrate: %w", err)
	}

	initiator.SetObserver(qstp.NewLoggingObserver(log.Named("initiator")))
	responder.SetObserver(qstp.NewLoggingObserver(log.Named("responder")))

	meta := initiator.Metadata()
	log.Info("tunnel established", metrics.Fields{
		"tunnel_id": fmt.Sprintf("%x", meta.TunnelID[:8]),
		"suite":     suite.String(),
		"topic":     installed.Topic,
		"envelope":  len(est.HandshakeEnvelope),
	})

	transport := qstp.NewInMemoryMesh()
	initiator.RegisterAlternateRoutes([]mesh.RoutePlan{fallback})
	responder.RegisterAlternateRoutes([]mesh.RoutePlan{fallback})

	if err := pushTraffic(initiator, responder, transport, config.frames, "phase-1"); err != nil {
		return err
	}

	telemetry := qace.Metrics{
		LatencyMS:   8,
		LossBPS:     300,
		ThreatScore: uint8(config.threat),
		JitterMS:    2,
	}
	for name, tunnel := range map[string]*qstp.Tunnel{"initiator": initiator, "responder": responder} {
		_, endEvaluate := metrics.StartSpan(ctx, metrics.SpanQaceEvaluate, metrics.WithAttributes(
			metrics.SpanAttributes{Role: name}.ToMap()))
		decision, err := tunnel.ApplyQace(telemetry, engine)
		endEvaluate(err)
		if err != nil {
			return fmt.Errorf("%s qace: %w", name, err)
		}
		log.Info("qace decision", metrics.Fields{
			"endpoint":   name,
			"action":     decision.Action.String(),
			"score":      decision.Score,
			"rationale":  decision.Rationale,
			"confidence": decision.Convergence.Confidence,
		})
	}

	if err := pushTraffic(initiator, responder, transport, config.frames, "phase-2"); err != nil {
		return err
	}

	plain, err := initiator.FetchTupleMetadata(store)
	if err != nil {
		return fmt.Errorf("tuple metadata: %w", err)
	}
	log.Info("simulation complete", metrics.Fields{
		"final_topic":  initiator.Route().Topic,
		"tuple_qos":    plain.QoS.String(),
		"tuple_epoch":  plain.RouteEpoch,
		"store_tuples": store.Len(),
	})

	if simpleTracer != nil {
		for _, span := range simpleTracer.Spans() {
			log.Info("span", metrics.Fields{
				"name":     span.Name,
				"duration": span.Duration.String(),
				"attrs":    span.Attributes,
			})
		}
	}
	return nil
}

// pushTraffic seals frames on the initiator, ferries them through the
// mesh queue for the tunnel's current topic, and opens them on the
// responder.
func pushTraffic(initiator, responder *qstp.Tunnel, transport *qstp.InMemoryMesh, frames int, phase string) error {
	topic := initiator.Route().Topic
	for i := 0; i < frames; i++ {
		payload := []byte(fmt.Sprintf("%s frame %d", phase, i))
		frame, err := initiator.Seal(payload, []byte(phase))
		if err != nil {
			return fmt.Errorf("seal: %w", err)
		}
		if err := transport.Publish(frame); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}

	for {
		frame := transport.TryRecv(topic)
		if frame == nil {
			break
		}
		if _, err := responder.Open(frame, []byte(phase)); err != nil {
			return fmt.Errorf("open: %w", err)
		}
	}
	return nil
}
