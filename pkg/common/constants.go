package common

const (
	DEFAULT_LISTEN_ADDRESS = "0.0.0.0:9993"
	DEFAULT_LOG_LEVEL      = 3
	DEFAULT_MTU            = 1432

	DEFAULT_FRAGMENT_EXPIRATION_MS = 1500
	DEFAULT_MAX_INCOMPLETE         = 256
	DEFAULT_COMPLETED_CAPACITY     = 4096
	DEFAULT_COMPLETED_FPR          = 1e-6

	// Interface types
	IF_TYPE_UDP = "udp"
)
