package config

// APIConfig defines settings for the HTTP adapter.
type APIConfig struct {
	// Addr is the listen address of the HTTP server.
	Addr string `json:"addr"`
	// Token, when set, requires "Bearer <token>" on every request.
	Token string `json:"token"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}
