package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/alanbriolat/video-wall/internal/relay"
)

const EnvPrefix = "VIDEOWALL_"

// applyEnv overrides cfg with every VIDEOWALL_* variable that lookup finds, collecting all parse errors.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var result *multierror.Error
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	duration := func(key string, dst *Duration) {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = Duration(d)
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(EnvPrefix + key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	duration("DYNAMIC_INTERVAL", &cfg.Refresh.DynamicInterval)
	duration("VENDOR_INTERVAL", &cfg.Refresh.VendorInterval)

	str("TOOLS_DIR", &cfg.Tools.BundleDir)
	str("RESOLVER", &cfg.Tools.Resolver)
	str("TRANSCODER", &cfg.Tools.Transcoder)
	str("PLAYER", &cfg.Tools.Player)
	duration("RESOLVER_TIMEOUT", &cfg.Tools.ResolverTimeout)

	if v, ok := lookup(EnvPrefix + "VENDOR_MODE"); ok {
		cfg.Vendor.Mode = relay.Mode(v)
	}
	str("VENDOR_COOKIE_ENDPOINT", &cfg.Vendor.CookieEndpoint)
	str("VENDOR_EMBED_URL", &cfg.Vendor.EmbedURL)
	str("VENDOR_REFERER", &cfg.Vendor.Referer)
	duration("VENDOR_MAX_DURATION", &cfg.Vendor.MaxDuration)

	str("RELAY_ADDR", &cfg.Relay.Addr)

	boolean("WEATHER", &cfg.Weather.Enabled)
	float("WEATHER_LATITUDE", &cfg.Weather.Latitude)
	float("WEATHER_LONGITUDE", &cfg.Weather.Longitude)

	str("CACHE_DIR", &cfg.Paths.CacheDir)
	str("DATA_DIR", &cfg.Paths.DataDir)

	return result.ErrorOrNil()
}
