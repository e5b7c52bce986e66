package cnst

const (
	// AppName is the canonical service name used in logs, metrics and traces.
	AppName = "notify-gateway"

	// AccessTokenCookie is the cookie carrying the bearer credential.
	// Set by the login controller, read at the websocket handshake.
	AccessTokenCookie = "access_token"

	// EventShareVideo is the single outbound event kind this gateway emits.
	EventShareVideo = "share_video"
)

// Redis cluster deployment types accepted in configuration.
const (
	RedisClusterTypeSingle   = "single"
	RedisClusterTypeCluster  = "cluster"
	RedisClusterTypeSentinel = "sentinel"
)
