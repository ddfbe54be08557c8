// Package seed produces deterministic demo login traffic: a mix of
// routine logins and suspicious ones (bad IPs, odd hours, far-away
// locations) for exercising the analysis pipeline.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/ajitpdevops/rediguard/internal/domain/model"
)

// defaultSeed keeps demo runs reproducible.
const defaultSeed = 42

// suspiciousRatio is the fraction of generated events that look hostile.
const suspiciousRatio = 0.1

var demoUsers = []string{
	"alice", "bob", "carol", "dave", "erin",
	"frank", "grace", "heidi", "ivan", "judy",
}

var homeLocations = []string{
	"New York, US", "London, UK", "Berlin, DE", "Tokyo, JP",
	"San Francisco, US", "Amsterdam, NL", "Paris, FR", "Sydney, AU",
	"Chicago, US", "Singapore, SG",
}

var suspiciousLocations = []string{
	"Moscow, RU", "Lagos, NG", "Istanbul, TR", "Unknown, XX",
}

// maliciousIPs are pre-seeded into the reputation set so a slice of the
// generated traffic reliably trips it.
var maliciousIPs = []string{
	"198.51.100.7", "203.0.113.66", "192.0.2.200",
}

// Generator emits login events pseudo-randomly but reproducibly.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithSeed overrides the RNG seed.
func WithSeed(seed int64) Option {
	return func(g *Generator) { g.rng = rand.New(rand.NewSource(seed)) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGenerator creates a deterministic event generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		rng: rand.New(rand.NewSource(defaultSeed)),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MaliciousIPs returns the addresses to pre-seed into the reputation set.
func MaliciousIPs() []string {
	out := make([]string, len(maliciousIPs))
	copy(out, maliciousIPs)
	return out
}

// Next emits one event; roughly one in ten is suspicious.
func (g *Generator) Next() model.LoginEvent {
	if g.rng.Float64() < suspiciousRatio {
		return g.suspicious()
	}
	return g.routine()
}

// routine is a working-hours login from the user's home location on a
// private office subnet.
func (g *Generator) routine() model.LoginEvent {
	idx := g.rng.Intn(len(demoUsers))
	t := g.now().UTC()
	// pull the event into working hours
	hour := 9 + g.rng.Intn(9)
	t = time.Date(t.Year(), t.Month(), t.Day(), hour, g.rng.Intn(60), g.rng.Intn(60), 0, time.UTC)

	return model.LoginEvent{
		UserID:    demoUsers[idx],
		IP:        fmt.Sprintf("192.168.%d.%d", g.rng.Intn(4), 1+g.rng.Intn(254)),
		Location:  homeLocations[idx],
		Timestamp: t.Unix(),
	}
}

// suspicious is a night login from a far-away location, sometimes from
// a known-bad address.
func (g *Generator) suspicious() model.LoginEvent {
	ip := fmt.Sprintf("%d.%d.%d.%d",
		1+g.rng.Intn(223), g.rng.Intn(256), g.rng.Intn(256), 1+g.rng.Intn(254))
	if g.rng.Float64() < 0.5 {
		ip = maliciousIPs[g.rng.Intn(len(maliciousIPs))]
	}
	t := g.now().UTC()
	t = time.Date(t.Year(), t.Month(), t.Day(), g.rng.Intn(5), g.rng.Intn(60), g.rng.Intn(60), 0, time.UTC)

	return model.LoginEvent{
		UserID:    demoUsers[g.rng.Intn(len(demoUsers))],
		IP:        ip,
		Location:  suspiciousLocations[g.rng.Intn(len(suspiciousLocations))],
		Timestamp: t.Unix(),
	}
}
