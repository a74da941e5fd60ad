package metrics

type Settings struct {
	MetricsAddr string `toml:"metricsAddr"`
	MetricsPath string `toml:"metricsPath"`
}

func DefaultSettings() *Settings {
	return &Settings{
		MetricsAddr: ":9626",
		MetricsPath: "/metrics",
	}
}
