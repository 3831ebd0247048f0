// Package metrics exposes optional Prometheus instrumentation for the
// handshake and ratchet layers. Nothing in this package is required for
// correctness; callers that don't want metrics never import it.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// HandshakesTotal counts X3DH handshake attempts by role and result.
	HandshakesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "e2ecore_handshakes_total",
			Help: "Total X3DH handshakes attempted.",
		},
		[]string{"role", "result"},
	)

	// RatchetStepsTotal counts DH ratchet steps performed while decrypting.
	RatchetStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "e2ecore_ratchet_dh_steps_total",
			Help: "Total Double Ratchet DH ratchet steps performed.",
		},
		[]string{"suite"},
	)

	// MessagesEncryptedTotal counts ratchet messages sealed.
	MessagesEncryptedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "e2ecore_messages_encrypted_total",
			Help: "Total ratchet messages encrypted.",
		},
		[]string{"suite"},
	)

	// MessagesDecryptedTotal counts ratchet messages opened, by result.
	MessagesDecryptedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "e2ecore_messages_decrypted_total",
			Help: "Total ratchet messages decrypted.",
		},
		[]string{"suite", "result"},
	)

	// SkippedKeysEvictedTotal counts skipped message keys dropped from the
	// bounded arena, by reason.
	SkippedKeysEvictedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "e2ecore_skipped_keys_evicted_total",
			Help: "Total skipped message keys evicted from the bounded cache.",
		},
		[]string{"reason"},
	)

	// PrekeyRotationsTotal counts signed prekey rotations.
	PrekeyRotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "e2ecore_prekey_rotations_total",
			Help: "Total signed prekey rotations.",
		},
		[]string{"result"},
	)
)

// MustRegister registers every e2ecore collector against reg. Callers that
// already own a *prometheus.Registry pass it here instead of relying on
// the global default registry.
func MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		HandshakesTotal,
		RatchetStepsTotal,
		MessagesEncryptedTotal,
		MessagesDecryptedTotal,
		SkippedKeysEvictedTotal,
		PrekeyRotationsTotal,
	)
}
