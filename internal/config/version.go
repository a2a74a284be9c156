package config

// Build metadata, overridden at link time:
//
//	-ldflags "-X .../internal/config.Version=v1.2.3 ..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)
