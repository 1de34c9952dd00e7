package config

// Snapshot is the immutable bundle of tuning and upstream descriptors in
// effect for a contiguous span of time. A new Snapshot replaces the old one
// by atomic pointer swap; requests already holding a reference finish
// against it.
type Snapshot struct {
	Health     HealthConfig
	Resilience ResilienceConfig
	Upstreams  []UpstreamConfig
}

// SnapshotFrom builds an immutable Snapshot from a loaded Config.
func SnapshotFrom(cfg *Config) *Snapshot {
	upstreams := make([]UpstreamConfig, len(cfg.Upstreams))
	copy(upstreams, cfg.Upstreams)
	return &Snapshot{
		Health:     cfg.Health,
		Resilience: cfg.Resilience,
		Upstreams:  upstreams,
	}
}

// Upstream looks up an upstream descriptor by name.
func (s *Snapshot) Upstream(name string) (UpstreamConfig, bool) {
	for _, u := range s.Upstreams {
		if u.Name == name {
			return u, true
		}
	}
	return UpstreamConfig{}, false
}
