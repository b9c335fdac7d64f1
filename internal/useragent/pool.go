// Package useragent holds the pool of client identity strings used for
// outbound requests.
package useragent

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
)

var defaultAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
}

// Pool is an immutable set of user-agent strings, safe to share across
// workers.
type Pool struct {
	agents []string
}

// Default returns the built-in pool.
func Default() *Pool {
	return &Pool{agents: defaultAgents}
}

// Load reads a JSON array of user-agent strings from path. An empty path
// yields the default pool.
func Load(path string) (*Pool, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read user agents file: %w", err)
	}
	var agents []string
	if err := json.Unmarshal(raw, &agents); err != nil {
		return nil, fmt.Errorf("parse user agents file: %w", err)
	}
	if len(agents) == 0 {
		return Default(), nil
	}
	return &Pool{agents: agents}, nil
}

// Random picks one identity string.
func (p *Pool) Random() string {
	return p.agents[rand.Intn(len(p.agents))]
}

// Len reports the pool size.
func (p *Pool) Len() int {
	return len(p.agents)
}
