package config

// SellerAPIConfig controls how we talk to the seller notifications API.
type SellerAPIConfig struct {
	BaseURL string
	// Token, when set, is used to start polling at boot.
	Token        string
	Timeout      Duration
	RateInterval Duration
	PerPage      int
}

func defaultSellerAPI() SellerAPIConfig {
	return SellerAPIConfig{
		BaseURL:      defaultSellerBaseURL,
		Timeout:      defaultSellerTimeout,
		RateInterval: defaultSellerRate,
		PerPage:      defaultSellerPerPage,
	}
}

func (s SellerAPIConfig) fromEnv() SellerAPIConfig {
	return SellerAPIConfig{
		BaseURL:      envOrDefault(envSellerBaseURL, s.BaseURL),
		Token:        envOrDefault(envSellerToken, s.Token),
		Timeout:      durationEnvOrDefault(envSellerTimeout, s.Timeout),
		RateInterval: durationEnvOrDefault(envSellerRate, s.RateInterval),
		PerPage:      intEnvOrDefault(envSellerPerPage, s.PerPage),
	}
}

// PollerConfig controls the notification poller.
type PollerConfig struct {
	Interval     Duration
	FetchTimeout Duration
	// SoftFailure is "drop" or "escalate".
	SoftFailure string
	Autostart   bool
}

func defaultPoller() PollerConfig {
	return PollerConfig{
		Interval:    defaultPollInterval,
		SoftFailure: defaultSoftFailure,
		Autostart:   true,
	}
}

func (p PollerConfig) fromEnv() PollerConfig {
	return PollerConfig{
		Interval:     durationEnvOrDefault(envPollInterval, p.Interval),
		FetchTimeout: durationEnvOrDefault(envPollFetchTimeout, p.FetchTimeout),
		SoftFailure:  envOrDefault(envPollSoftFailure, p.SoftFailure),
		Autostart:    boolEnvOrDefault(envPollAutostart, p.Autostart),
	}
}
