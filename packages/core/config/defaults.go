package config

// DefaultFileField is the form field name files are sent under.
const DefaultFileField = "files"

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Method:          "POST",
		FileField:       DefaultFileField,
		Timeout:         30000, // 30 seconds
		Retries:         0,
		RetryDelay:      1000, // 1 second
		FollowRedirects: BoolPtr(true),
		MaxRedirects:    10,
		ValidateSSL:     BoolPtr(true),
		Output:          "raw",
		History:         BoolPtr(true),
		Bench: Bench{
			Count:       100,
			Concurrency: 1,
		},
	}
}

// Starter returns the configuration `hitupload init` writes: the defaults
// plus the classic example's comment field and a local target.
func Starter() *Config {
	c := Default()
	c.URL = "http://localhost:8080/upload"
	c.Fields = []Field{{Name: "comment", Value: "Larry"}}
	c.Expect.Status = []int{200, 201}
	c.Bench.Thresholds = "p95<500ms,errors<1%"
	return c
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	d := Default()
	return c.URL == d.URL &&
		c.Method == d.Method &&
		c.HTTPVersion == d.HTTPVersion &&
		c.Boundary == d.Boundary &&
		c.FileField == d.FileField &&
		len(c.Fields) == 0 &&
		len(c.Files) == 0 &&
		len(c.Headers) == 0 &&
		c.Timeout == d.Timeout &&
		c.Retries == d.Retries &&
		c.RetryDelay == d.RetryDelay &&
		c.GetFollowRedirects() == d.GetFollowRedirects() &&
		c.MaxRedirects == d.MaxRedirects &&
		c.GetValidateSSL() == d.GetValidateSSL() &&
		c.GetWire() == d.GetWire() &&
		c.Proxy == d.Proxy &&
		c.Auth == d.Auth &&
		c.Output == d.Output &&
		c.GetHistory() == d.GetHistory()
}
