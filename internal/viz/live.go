package viz

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/clustersim/internal/hermite"
	"github.com/san-kum/clustersim/internal/metrics"
	"github.com/san-kum/clustersim/internal/nbody"
)

const (
	width           = 60
	height          = 20
	historyCapacity = 600
	frameInterval   = time.Second / 30
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(48)
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model advances an ensemble with a Hermite stepper, a fixed number of
// steps per frame, and draws it.
type Model struct {
	ctx     context.Context
	stepper *hermite.Stepper
	ens     *nbody.Ensemble
	initial *nbody.Ensemble

	stepsPerFrame int
	iteration     int
	running       bool
	err           error

	canvas   *Canvas
	camera   *Camera
	e0       float64
	energy   metrics.Energy
	energies []float64
}

// NewModel evaluates the initial forces on ens and returns a model ready to
// run. ens is advanced in place; a copy is kept for reset.
func NewModel(ctx context.Context, st *hermite.Stepper, ens *nbody.Ensemble, stepsPerFrame int) (Model, error) {
	if stepsPerFrame < 1 {
		stepsPerFrame = 1
	}
	if err := st.Init(ctx, ens); err != nil {
		return Model{}, err
	}
	m := Model{
		ctx:           ctx,
		stepper:       st,
		ens:           ens,
		initial:       ens.Clone(),
		stepsPerFrame: stepsPerFrame,
		running:       true,
		canvas:        NewCanvas(width, height),
		camera:        NewCamera(ViewExtent(ens)),
		energies:      make([]float64, 0, historyCapacity),
	}
	m.observe()
	m.e0 = m.energy.Total
	return m, nil
}

// ViewExtent is three half-mass radii around the origin, so the core fills
// the view and escapers leave it.
func ViewExtent(ens *nbody.Ensemble) float64 {
	r := make([]float64, ens.N)
	for i := range r {
		var s float64
		for _, x := range ens.Pos.Vec(i) {
			s += x * x
		}
		r[i] = math.Sqrt(s)
	}
	if len(r) == 0 {
		return 1
	}
	sort.Float64s(r)
	if ext := 3 * r[len(r)/2]; ext > 0 {
		return ext
	}
	if r[len(r)-1] > 0 {
		return r[len(r)-1]
	}
	return 1
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			if m.err == nil {
				m.running = !m.running
			}
		case "r":
			m.reset()
		case "+", "=":
			m.camera.ZoomIn()
		case "-", "_":
			m.camera.ZoomOut()
		case "x":
			m.camera.RotateX(0.1)
		case "X":
			m.camera.RotateX(-0.1)
		case "y":
			m.camera.RotateY(0.1)
		case "Y":
			m.camera.RotateY(-0.1)
		}
	case TickMsg:
		if m.running {
			m.advance()
		}
		return m, tick()
	}
	return m, nil
}

// advance runs one frame's worth of steps. A failed step stops the model.
func (m *Model) advance() {
	for range m.stepsPerFrame {
		if err := m.stepper.Step(m.ctx, m.ens); err != nil {
			m.fail(err)
			return
		}
		m.iteration++
		if !m.ens.IsValid() {
			m.fail(nbody.ErrInvalidState)
			return
		}
	}
	m.observe()
}

func (m *Model) fail(err error) {
	m.err = &nbody.RunError{Iteration: m.iteration, Time: m.Time(), Err: err}
	m.running = false
}

func (m *Model) observe() {
	m.energy = metrics.Measure(m.ens)
	m.energies = append(m.energies, m.energy.Total)
	if len(m.energies) > historyCapacity {
		m.energies = m.energies[1:]
	}
}

// reset restores the initial ensemble and forces; the camera is kept.
func (m *Model) reset() {
	m.ens.CopyFrom(m.initial)
	m.iteration = 0
	m.err = nil
	m.energies = m.energies[:0]
	if err := m.stepper.Init(m.ctx, m.ens); err != nil {
		m.fail(err)
		return
	}
	m.running = true
	m.observe()
}

func (m Model) Time() float64       { return float64(m.iteration) * m.stepper.Dt() }
func (m Model) Iteration() int      { return m.iteration }
func (m Model) Running() bool       { return m.running }
func (m Model) Err() error          { return m.err }
func (m Model) Camera() *Camera     { return m.camera }
func (m Model) Energies() []float64 { return m.energies }

// Draw clears c and plots every particle of ens as seen by cam.
func Draw(c *Canvas, cam *Camera, ens *nbody.Ensemble) {
	c.Clear()
	for i := range ens.N {
		c.Plot(cam.Project(ens.Pos.Vec(i)))
	}
}

func (m Model) View() string {
	Draw(m.canvas, m.camera, m.ens)
	canvasView := canvasStyle.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(HeaderStyle.Render(fmt.Sprintf("CLUSTERSIM  N=%d  DIM=%d", m.ens.N, m.ens.Dim)) + "\n")
	switch {
	case m.err != nil:
		s.WriteString(StatusFailed.Render("FAILED") + "\n" + Subtle.Render(m.err.Error()) + "\n\n")
	case m.running:
		s.WriteString(StatusRunning.Render("RUNNING") + "\n\n")
	default:
		s.WriteString(StatusPaused.Render("PAUSED") + "\n\n")
	}

	if len(m.energies) > 1 {
		chart := asciigraph.Plot(m.energies, asciigraph.Height(5), asciigraph.Width(34), asciigraph.Caption("Total energy"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}

	s.WriteString(Metric("Time", fmt.Sprintf("%.4f", m.Time())) + "\n")
	s.WriteString(Metric("Iteration", fmt.Sprintf("%d", m.iteration)) + "\n")
	s.WriteString(Metric("Energy", fmt.Sprintf("%.6f", m.energy.Total)) + "\n")
	s.WriteString(Metric("Drift", fmt.Sprintf("%.2e", metrics.RelativeDrift(m.energy.Total, m.e0))) + "\n")
	if m.energy.Potential != 0 {
		s.WriteString(Metric("2K/|U|", fmt.Sprintf("%.3f", 2*m.energy.Kinetic/math.Abs(m.energy.Potential))) + "\n")
	}
	s.WriteString(Metric("Zoom", fmt.Sprintf("%.2fx", m.camera.Zoom)) + "\n")
	s.WriteString("\n" + Separator(40) + "\n")
	s.WriteString(KeyHint.Render("space:pause r:reset +/-:zoom x/y:rotate q:quit"))

	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
}
