// Package config centralises the tunables the rest of this module reads,
// so none of them are hard-coded inline. Defaults mirror the reference
// implementation this library's design was distilled from.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every runtime tunable for a Client.
type Config struct {
	// PBKDF2Iterations is the PBKDF2-HMAC-SHA256 round count used by
	// package keyvault to stretch a backup password.
	PBKDF2Iterations int

	// MaxSkippedMessages bounds out-of-order handling in a ratchet.State:
	// an incoming message that would skip more than this many message keys
	// is rejected, and once more than this many skipped keys are cached the
	// oldest entries are evicted.
	MaxSkippedMessages int
	// MaxSkippedMessageAge evicts cached skipped message keys older than
	// this, independent of the count bound.
	MaxSkippedMessageAge time.Duration

	// MaxPrekeyAge is the age, measured from creation, past which an
	// archived signed prekey is dropped from keymanager.Manager's history.
	// The check runs on each RotateSignedPrekey call, not on GetPrekey.
	MaxPrekeyAge time.Duration
	// PrekeyCleanupPeriod is the suggested interval for a caller to call
	// RotatePrekey on a schedule.
	PrekeyCleanupPeriod time.Duration

	// ClassicSuiteID is the wire tag of the classic suite (suite.Classic).
	// No package reads it: a Client always takes its Suite as a
	// constructor argument.
	ClassicSuiteID uint16

	// MessageTimestampFutureTolerance and MessageTimestampPastTolerance
	// bound how far a message's application-level timestamp (outside the
	// cryptographic envelope) may drift from local time before a caller
	// should reject it as implausible.
	MessageTimestampFutureTolerance time.Duration
	MessageTimestampPastTolerance   time.Duration

	// PasswordMinLength, UsernameMinLength and UsernameMaxLength are
	// validation bounds for caller-facing registration flows built on top
	// of this library.
	PasswordMinLength int
	UsernameMinLength int
	UsernameMaxLength int
}

// Default returns the library's stock tunables.
func Default() Config {
	return Config{
		PBKDF2Iterations: 100_000,

		MaxSkippedMessages:   1000,
		MaxSkippedMessageAge: 7 * 24 * time.Hour,

		MaxPrekeyAge:        30 * 24 * time.Hour,
		PrekeyCleanupPeriod: 30 * 24 * time.Hour,

		ClassicSuiteID: 1,

		MessageTimestampFutureTolerance: 5 * time.Minute,
		MessageTimestampPastTolerance:   time.Hour,

		PasswordMinLength: 8,
		UsernameMinLength: 3,
		UsernameMaxLength: 32,
	}
}

// FromEnv returns Default with any recognised environment variables
// overriding their matching field, for container or CI deployments that
// prefer env-based configuration over flags or files.
func FromEnv() Config {
	cfg := Default()

	if v, ok := envInt("E2ECORE_PBKDF2_ITERATIONS"); ok {
		cfg.PBKDF2Iterations = v
	}
	if v, ok := envInt("E2ECORE_MAX_SKIPPED_MESSAGES"); ok {
		cfg.MaxSkippedMessages = v
	}
	if v, ok := envSeconds("E2ECORE_MAX_SKIPPED_MESSAGE_AGE_SECS"); ok {
		cfg.MaxSkippedMessageAge = v
	}
	if v, ok := envSeconds("E2ECORE_MAX_PREKEY_AGE_SECS"); ok {
		cfg.MaxPrekeyAge = v
	}
	if v, ok := envSeconds("E2ECORE_PREKEY_CLEANUP_PERIOD_SECS"); ok {
		cfg.PrekeyCleanupPeriod = v
	}

	return cfg
}

func envInt(name string) (int, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envSeconds(name string) (time.Duration, bool) {
	v, ok := envInt(name)
	if !ok {
		return 0, false
	}
	return time.Duration(v) * time.Second, true
}
