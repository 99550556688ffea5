package server

import "time"

type Config struct {
	Addr      string
	MongoURI  string
	MongoDB   string
	JWTIssuer string
	TokenTTL  time.Duration

	// InMemory swaps the Mongo store for the in-process one. Used by tests
	// and local single-node runs.
	InMemory bool
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.MongoDB == "" {
		c.MongoDB = "zkvault"
	}
	if c.JWTIssuer == "" {
		c.JWTIssuer = "zkvault-server"
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 15 * time.Minute
	}
}
