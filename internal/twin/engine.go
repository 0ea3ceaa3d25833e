// Package twin runs the data-centre digital twin: racks whose load drifts
// toward random targets and data-flow particles travelling between them.
package twin

import (
	"math"
	"math/rand/v2"
	"strconv"
)

// Config tunes the simulation.
type Config struct {
	Racks         int
	PerRow        int
	Width         float64
	Height        float64
	Smoothing     float64
	RetargetEvery int
	// MaxFlows caps live flows; zero means the default, negative disables flows.
	MaxFlows int
	// SpawnChance is the per-frame probability of launching a new flow.
	SpawnChance float64
	// FlowSpeed is progress per second; 1 crosses the link in one second.
	FlowSpeed float64
}

// DefaultConfig mirrors the canvas used by the UI.
func DefaultConfig() Config {
	return Config{
		Racks:         12,
		PerRow:        4,
		Width:         800,
		Height:        500,
		Smoothing:     0.08,
		RetargetEvery: 30,
		MaxFlows:      24,
		SpawnChance:   0.35,
		FlowSpeed:     0.6,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Racks <= 0 {
		c.Racks = d.Racks
	}
	if c.PerRow <= 0 {
		c.PerRow = d.PerRow
	}
	if c.Width <= 0 {
		c.Width = d.Width
	}
	if c.Height <= 0 {
		c.Height = d.Height
	}
	if c.Smoothing <= 0 || c.Smoothing > 1 {
		c.Smoothing = d.Smoothing
	}
	if c.RetargetEvery <= 0 {
		c.RetargetEvery = d.RetargetEvery
	}
	switch {
	case c.MaxFlows == 0:
		c.MaxFlows = d.MaxFlows
	case c.MaxFlows < 0:
		c.MaxFlows = 0
	}
	if c.SpawnChance <= 0 {
		c.SpawnChance = d.SpawnChance
	}
	if c.FlowSpeed <= 0 {
		c.FlowSpeed = d.FlowSpeed
	}
	return c
}

// Rack is the per-frame state of one rack.
type Rack struct {
	ID          string  `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Utilization float64 `json:"utilization"`
	Temperature float64 `json:"temperature"`
	Network     float64 `json:"network"`
}

// Flow is a particle moving from rack From to rack To.
type Flow struct {
	ID       int     `json:"id"`
	From     int     `json:"from"`
	To       int     `json:"to"`
	Progress float64 `json:"progress"`
	Speed    float64 `json:"speed"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// Frame is one rendered snapshot.
type Frame struct {
	Seq     int     `json:"seq"`
	Elapsed float64 `json:"elapsed"`
	Racks   []Rack  `json:"racks"`
	Flows   []Flow  `json:"flows"`
}

// Stats aggregates every frame produced so far.
type Stats struct {
	Frames         int
	AvgUtilization float64
	AvgTemperature float64
	AvgNetwork     float64
}

type rackState struct {
	Rack
	targetUtil    float64
	targetTemp    float64
	targetNetwork float64
}

// Engine advances the simulation. It is not safe for concurrent use.
type Engine struct {
	cfg      Config
	rng      *rand.Rand
	racks    []rackState
	flows    []Flow
	frame    int
	nextFlow int
	elapsed  float64

	sumUtil, sumTemp, sumNet float64
}

// NewEngine lays out the racks and seeds their starting state.
func NewEngine(cfg Config, seed uint64) *Engine {
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	points := Layout(cfg.Racks, cfg.PerRow, cfg.Width, cfg.Height, rng)
	e := &Engine{cfg: cfg, rng: rng, racks: make([]rackState, cfg.Racks)}
	for i, p := range points {
		util := 20 + rng.Float64()*40
		e.racks[i] = rackState{
			Rack: Rack{
				ID:          "rack-" + strconv.Itoa(i+1),
				X:           p.X,
				Y:           p.Y,
				Utilization: util,
				Temperature: tempFor(util),
				Network:     10 + rng.Float64()*30,
			},
		}
		e.retarget(&e.racks[i])
	}
	return e
}

// Step advances by dt seconds and returns the new frame.
func (e *Engine) Step(dt float64) Frame {
	e.frame++
	e.elapsed += dt
	if e.frame%e.cfg.RetargetEvery == 0 {
		for i := range e.racks {
			e.retarget(&e.racks[i])
		}
	}
	s := e.cfg.Smoothing
	for i := range e.racks {
		r := &e.racks[i]
		r.Utilization += (r.targetUtil - r.Utilization) * s
		r.Temperature += (r.targetTemp - r.Temperature) * s
		r.Network += (r.targetNetwork - r.Network) * s
	}
	e.advanceFlows(dt)
	e.maybeSpawn()

	var util, temp, net float64
	for _, r := range e.racks {
		util += r.Utilization
		temp += r.Temperature
		net += r.Network
	}
	n := float64(len(e.racks))
	e.sumUtil += util / n
	e.sumTemp += temp / n
	e.sumNet += net / n
	return e.snapshot()
}

// Stats returns averages over every frame stepped so far.
func (e *Engine) Stats() Stats {
	if e.frame == 0 {
		return Stats{}
	}
	f := float64(e.frame)
	return Stats{
		Frames:         e.frame,
		AvgUtilization: e.sumUtil / f,
		AvgTemperature: e.sumTemp / f,
		AvgNetwork:     e.sumNet / f,
	}
}

// Rand exposes the engine's seeded source for derived figures.
func (e *Engine) Rand() *rand.Rand {
	return e.rng
}

func (e *Engine) retarget(r *rackState) {
	r.targetUtil = clamp(r.Utilization+(e.rng.Float64()*2-1)*25, 0, 100)
	r.targetNetwork = clamp(r.Network+(e.rng.Float64()*2-1)*30, 0, 100)
	r.targetTemp = tempFor(r.targetUtil)
}

func (e *Engine) advanceFlows(dt float64) {
	kept := e.flows[:0]
	for _, f := range e.flows {
		f.Progress += f.Speed * dt
		if f.Progress >= 1 {
			continue
		}
		f.X, f.Y = e.position(f)
		kept = append(kept, f)
	}
	e.flows = kept
}

func (e *Engine) maybeSpawn() {
	if len(e.flows) >= e.cfg.MaxFlows || len(e.racks) < 2 {
		return
	}
	if e.rng.Float64() >= e.cfg.SpawnChance {
		return
	}
	from := e.rng.IntN(len(e.racks))
	to := e.rng.IntN(len(e.racks) - 1)
	if to >= from {
		to++
	}
	e.nextFlow++
	f := Flow{
		ID:    e.nextFlow,
		From:  from,
		To:    to,
		Speed: e.cfg.FlowSpeed * (0.75 + e.rng.Float64()*0.5),
	}
	f.X, f.Y = e.position(f)
	e.flows = append(e.flows, f)
}

func (e *Engine) position(f Flow) (float64, float64) {
	a, b := e.racks[f.From], e.racks[f.To]
	return lerp(a.X, b.X, f.Progress), lerp(a.Y, b.Y, f.Progress)
}

func (e *Engine) snapshot() Frame {
	racks := make([]Rack, len(e.racks))
	for i, r := range e.racks {
		racks[i] = r.Rack
	}
	flows := make([]Flow, len(e.flows))
	copy(flows, e.flows)
	return Frame{Seq: e.frame, Elapsed: e.elapsed, Racks: racks, Flows: flows}
}

// tempFor maps utilization to a steady-state inlet temperature in °C.
func tempFor(util float64) float64 {
	return clamp(22+util*0.55, 18, 85)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
