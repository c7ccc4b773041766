// internal/workers/plan-generation/generate-plan/config.go
package generateplan

import "time"

// activationGrace covers the job commands sent after a run ends.
const activationGrace = time.Minute

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 5 * time.Minute,
	}
}

// ActivationTimeout is how long Zeebe locks an activated job. It outlasts
// Timeout so a run close to its deadline is not handed to another worker
// while it is still writing.
func (c *Config) ActivationTimeout() time.Duration {
	return c.Timeout + activationGrace
}
