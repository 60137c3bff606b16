package messenger

import "strings"

// FailureClass buckets a disconnect into one reconnection policy.
type FailureClass int

const (
	// ClassTransient backs off exponentially and keeps credentials.
	ClassTransient FailureClass = iota
	// ClassLoggedOut means the server unlinked the device (401); the
	// stored credentials are dead and must be wiped before re-pairing.
	ClassLoggedOut
	// ClassPairingRestart is the server asking for a plain reconnect
	// mid-pairing (515 / stream errored); credentials stay.
	ClassPairingRestart
	// ClassCritical covers failures that historically never recover
	// without a fresh pairing once retries are exhausted.
	ClassCritical
)

func (c FailureClass) String() string {
	switch c {
	case ClassLoggedOut:
		return "logged_out"
	case ClassPairingRestart:
		return "pairing_restart"
	case ClassCritical:
		return "critical"
	default:
		return "transient"
	}
}

const (
	codeLoggedOut      = 401
	codePairingRestart = 515
	codeClientOutdated = 405
)

var criticalFragments = []string{
	"connection failure",
	"connection terminated",
	"timed out",
	"client outdated",
}

// Classify maps a transport close code and description to a policy
// class.
func Classify(code int, message string) FailureClass {
	msg := strings.ToLower(message)
	switch {
	case code == codeLoggedOut:
		return ClassLoggedOut
	case code == codePairingRestart, strings.Contains(msg, "stream errored"):
		return ClassPairingRestart
	case code == codeClientOutdated:
		return ClassCritical
	}
	for _, f := range criticalFragments {
		if strings.Contains(msg, f) {
			return ClassCritical
		}
	}
	return ClassTransient
}
