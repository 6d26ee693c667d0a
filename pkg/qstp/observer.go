package qstp

import (
	"encoding/hex"

	"github.com/pzverkov/qstp-go/internal/constants"
	"github.com/pzverkov/qstp-go/pkg/metrics"
	"github.com/pzverkov/qstp-go/pkg/qace"
)

// Observer receives tunnel lifecycle events. All callbacks fire inline on
// the tunnel's goroutine; implementations must return quickly and must
// not call back into the tunnel.
type Observer interface {
	// OnSeal fires after a frame is sealed, with its sequence number.
	OnSeal(seq uint64)

	// OnOpen fires after a frame authenticates and decrypts.
	OnOpen(seq uint64)

	// OnReplayDetected fires when a frame arrives at or below the receive
	// watermark.
	OnReplayDetected(seq, watermark uint64)

	// OnAuthFailure fires when a frame fails nonce or AEAD verification.
	OnAuthFailure(seq uint64)

	// OnReroute fires after a new route is installed.
	OnReroute(oldHash, newHash [constants.RouteHashSize]byte, decision *qace.Decision)

	// OnRekey fires after the directional nonce bases are refreshed in
	// place.
	OnRekey(decision *qace.Decision)
}

type nopObserver struct{}

func (nopObserver) OnSeal(uint64)                   {}
func (nopObserver) OnOpen(uint64)                   {}
func (nopObserver) OnReplayDetected(uint64, uint64) {}
func (nopObserver) OnAuthFailure(uint64)            {}
func (nopObserver) OnRekey(*qace.Decision)          {}

func (nopObserver) OnReroute([constants.RouteHashSize]byte, [constants.RouteHashSize]byte, *qace.Decision) {
}

// LoggingObserver emits one structured log line per lifecycle event.
// Seal and open land at debug so steady-state traffic stays quiet;
// replay and authentication failures land at warn.
type LoggingObserver struct {
	log *metrics.Logger
}

// NewLoggingObserver wraps a logger. A nil logger falls back to the
// package default.
func NewLoggingObserver(log *metrics.Logger) *LoggingObserver {
	if log == nil {
		log = metrics.GetLogger()
	}
	return &LoggingObserver{log: log.Named("tunnel")}
}

func (o *LoggingObserver) OnSeal(seq uint64) {
	o.log.Debug("frame sealed", metrics.Fields{"seq": seq})
}

func (o *LoggingObserver) OnOpen(seq uint64) {
	o.log.Debug("frame opened", metrics.Fields{"seq": seq})
}

func (o *LoggingObserver) OnReplayDetected(seq, watermark uint64) {
	o.log.Warn("replayed frame dropped", metrics.Fields{
		"seq":       seq,
		"watermark": watermark,
	})
}

func (o *LoggingObserver) OnAuthFailure(seq uint64) {
	o.log.Warn("frame failed authentication", metrics.Fields{"seq": seq})
}

func (o *LoggingObserver) OnReroute(oldHash, newHash [constants.RouteHashSize]byte, decision *qace.Decision) {
	o.log.Info("route installed", metrics.Fields{
		"old_route": hex.EncodeToString(oldHash[:8]),
		"new_route": hex.EncodeToString(newHash[:8]),
		"rationale": decision.Rationale,
		"score":     decision.Score,
	})
}

func (o *LoggingObserver) OnRekey(decision *qace.Decision) {
	o.log.Info("nonce bases rotated", metrics.Fields{
		"rationale": decision.Rationale,
		"score":     decision.Score,
	})
}
