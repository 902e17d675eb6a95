package config

import "time"

// Timeout constants used across cmd.
const (
	ReadTimeout      = 20 * time.Second // parameter and counter reads
	PromptTimeout    = 2 * time.Minute  // waiting on a wallet prompt
	TxConfirmTimeout = 3 * time.Minute  // standard transaction confirmation wait
)
