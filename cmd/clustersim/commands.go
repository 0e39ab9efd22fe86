package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-logr/logr"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/clustersim/internal/analysis"
	"github.com/san-kum/clustersim/internal/automation"
	"github.com/san-kum/clustersim/internal/config"
	"github.com/san-kum/clustersim/internal/experiment"
	"github.com/san-kum/clustersim/internal/export"
	"github.com/san-kum/clustersim/internal/hermite"
	"github.com/san-kum/clustersim/internal/metrics"
	"github.com/san-kum/clustersim/internal/nbody"
	"github.com/san-kum/clustersim/internal/plummer"
	"github.com/san-kum/clustersim/internal/shard"
	"github.com/san-kum/clustersim/internal/storage"
	"github.com/san-kum/clustersim/internal/viz"
	"github.com/spf13/cobra"
)

func (a *app) runCmd() *cobra.Command {
	f := &launchFlags{}
	cmd := &cobra.Command{
		Use:   "run [[seed] N dt end]",
		Short: "run a simulation and record it",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.buildConfig(cmd, f, args)
			if err != nil {
				return err
			}
			return a.runSimulation(cmd, cfg)
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) runSimulation(cmd *cobra.Command, cfg *config.Config) error {
	st := storage.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "running %s N=%d dim=%d workers=%d...\n", cfg.InitialConditions, cfg.N, cfg.Dim, cfg.Workers)

	report, err := experiment.New(*cfg, a.logger()).WithStore(st).Run(ctx)
	if report != nil && report.Result != nil {
		fmt.Fprintln(out, summary(report))
	}
	return err
}

func summary(r *experiment.Report) string {
	res := r.Result
	lines := []string{
		viz.HeaderStyle.Render("run complete"),
		viz.Metric("run id", r.RunID),
		viz.Metric("seed", fmt.Sprintf("%d", r.Seed)),
		viz.Metric("iterations", fmt.Sprintf("%d", res.Iterations)),
		viz.Metric("elapsed", res.Elapsed.Round(time.Millisecond).String()),
		viz.Metric("energy drift", fmt.Sprintf("%.3e", res.EnergyDrift)),
	}

	names := make([]string, 0, len(res.Metrics))
	for name := range res.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		lines = append(lines, viz.Metric(name, fmt.Sprintf("%.6g", res.Metrics[name])))
	}

	if len(res.Energies) > 1 {
		total := make([]float64, len(res.Energies))
		for i, e := range res.Energies {
			total[i] = e.Total
		}
		lines = append(lines, "", viz.Subtle.Render("total energy"), viz.SparklineChart(total, 40))
	}
	return viz.GlassPanel.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (a *app) scenarioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenario [file]",
		Short: "run the steps of a YAML scenario in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := automation.LoadScenario(args[0])
			if err != nil {
				return err
			}
			st := storage.New(a.dataDir)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			results, err := automation.NewRunner(st, a.logger()).RunScenario(ctx, sc)
			if len(results) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "scenario %s\n\n", sc.Name)
				if werr := printOutcomes(cmd.OutOrStdout(), "STEP", results); werr != nil {
					return werr
				}
			}
			return err
		},
	}
}

func (a *app) sweepCmd() *cobra.Command {
	f := &launchFlags{}
	var (
		param    string
		values   []float64
		parallel int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "run one configuration over a range of values of a parameter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.buildConfig(cmd, f, nil)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			results, err := automation.NewRunner(storage.New(cfg.DataDir), a.logger()).RunSweep(ctx, automation.Sweep{
				Base:     *cfg,
				Param:    param,
				Values:   values,
				Parallel: parallel,
			})
			if err != nil {
				return err
			}
			return printOutcomes(cmd.OutOrStdout(), "POINT", results)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&param, "param", "dt", fmt.Sprintf("parameter to vary %v", automation.SweepParams))
	cmd.Flags().Float64SliceVar(&values, "values", nil, "comma-separated parameter values")
	cmd.Flags().IntVar(&parallel, "parallel", 1, "runs in flight at once")
	return cmd
}

func printOutcomes(out io.Writer, label string, results []automation.Outcome) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tRUN\tSEED\tITER\tDRIFT\tVIRIAL\tELAPSED\n", label)
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.2e\t%.3f\t%v\n",
			r.Name, r.RunID, r.Seed, r.Iterations, r.EnergyDrift, r.Virial, r.Elapsed.Round(time.Millisecond))
	}
	return w.Flush()
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := storage.New(a.dataDir).List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs found")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tTIME\tIC\tN\tDIM\tW\tDT\tEND\tDRIFT")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%g\t%g\t%.2e\n",
					run.ID,
					run.Status,
					run.Timestamp.Format("2006-01-02 15:04:05"),
					run.InitialConditions,
					run.N,
					run.Dim,
					run.Workers,
					run.Dt,
					run.EndTime,
					run.EnergyDrift,
				)
			}
			return w.Flush()
		},
	}
}

func (a *app) plotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the energy history of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(a.dataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			energies, err := st.LoadEnergies(meta.ID)
			if err != nil {
				return err
			}
			if len(energies) < 2 {
				return fmt.Errorf("run %s: not enough energy samples to plot", meta.ID)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run: %s\n", meta.ID)
			fmt.Fprintf(out, "status: %s\n", meta.Status)
			fmt.Fprintf(out, "samples: %d\n\n", len(energies))

			total := make([]float64, len(energies))
			drift := make([]float64, len(energies))
			kinetic := make([]float64, len(energies))
			for i, e := range energies {
				total[i] = e.Total
				kinetic[i] = e.Kinetic
				drift[i] = metrics.RelativeDrift(e.Total, energies[0].Total)
			}

			for _, p := range []struct {
				data    []float64
				caption string
			}{
				{total, "total energy"},
				{drift, "relative energy drift"},
				{kinetic, "kinetic energy"},
			} {
				fmt.Fprintln(out, asciigraph.Plot(p.data,
					asciigraph.Height(10),
					asciigraph.Width(80),
					asciigraph.Caption(p.caption),
				))
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func (a *app) analyzeCmd() *cobra.Command {
	var (
		series       string
		lyapunov     bool
		duration     float64
		perturbation float64
	)
	cmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of the energy series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(a.dataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			energies, err := st.LoadEnergies(meta.ID)
			if err != nil {
				return err
			}
			data, err := energySeries(energies, series)
			if err != nil {
				return err
			}
			if len(data) < 4 {
				return fmt.Errorf("run %s: not enough energy samples", meta.ID)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "frequency analysis: %s (%s energy)\n\n", meta.ID, series)

			ps := analysis.PowerSpectrum(data)
			plotData := ps[:max(len(ps)/2, 2)]
			fmt.Fprintln(out, asciigraph.Plot(plotData,
				asciigraph.Height(15),
				asciigraph.Width(80),
				asciigraph.Caption("power spectrum"),
			))
			fmt.Fprintln(out)

			freq, power := analysis.DominantFrequency(data, meta.Dt)
			fmt.Fprintf(out, "dominant frequency: %.4g (power %.3g)\n", freq, power)
			if freq > 0 {
				fmt.Fprintf(out, "period: %.4g\n", 1/freq)
			}

			if !lyapunov {
				return nil
			}
			ens, err := st.LoadInitialConditions(meta.ID)
			if err != nil {
				return err
			}
			if duration <= 0 {
				duration = meta.EndTime
			}
			lambda, err := analysis.Lyapunov(cmd.Context(), ens, meta.Dt, duration, perturbation)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "largest lyapunov exponent: %.4g\n", lambda)
			return nil
		},
	}
	cmd.Flags().StringVar(&series, "series", "total", "energy series (total, kinetic, potential)")
	cmd.Flags().BoolVar(&lyapunov, "lyapunov", false, "estimate the largest Lyapunov exponent from the initial conditions")
	cmd.Flags().Float64Var(&duration, "duration", 0, "integration time for the Lyapunov estimate (default: run end time)")
	cmd.Flags().Float64Var(&perturbation, "perturbation", 1e-8, "initial separation for the Lyapunov estimate")
	return cmd
}

func energySeries(energies []storage.EnergyRecord, series string) ([]float64, error) {
	pick := map[string]func(storage.EnergyRecord) float64{
		"total":     func(e storage.EnergyRecord) float64 { return e.Total },
		"kinetic":   func(e storage.EnergyRecord) float64 { return e.Kinetic },
		"potential": func(e storage.EnergyRecord) float64 { return e.Potential },
	}[series]
	if pick == nil {
		return nil, &nbody.ConfigError{Field: "series", Value: series, Reason: "expected total, kinetic or potential"}
	}
	data := make([]float64, len(energies))
	for i, e := range energies {
		data[i] = pick(e)
	}
	return data, nil
}

func (a *app) exportCSVCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export the energy series of a run to CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeOutput(cmd.OutOrStdout(), output, func(w io.Writer) error {
				return storage.New(a.dataDir).ExportCSV(w, args[0])
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (a *app) exportJSONCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeOutput(cmd.OutOrStdout(), output, func(w io.Writer) error {
				return storage.New(a.dataDir).ExportJSON(w, args[0])
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func writeOutput(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported to %s\n", path)
	return nil
}

func (a *app) snapshotCmd() *cobra.Command {
	var (
		iteration  int
		zoom       float64
		rotX, rotY float64
		svgPath    string
		svgSize    int
	)
	cmd := &cobra.Command{
		Use:   "snapshot [run_id]",
		Short: "draw a recorded snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(a.dataDir)
			iters, err := st.Snapshots(args[0])
			if err != nil {
				return err
			}
			if len(iters) == 0 {
				return fmt.Errorf("run %s has no snapshots", args[0])
			}
			if iteration < 0 {
				iteration = iters[len(iters)-1]
			}
			ens, err := st.LoadSnapshot(args[0], iteration)
			if err != nil {
				return err
			}

			cam := viz.NewCamera(viz.ViewExtent(ens))
			cam.Zoom = zoom
			cam.RotateX(rotX)
			cam.RotateY(rotY)

			out := cmd.OutOrStdout()
			canvas := viz.NewCanvas(60, 20)
			viz.Draw(canvas, cam, ens)
			fmt.Fprintf(out, "%s iteration %d (%d particles)\n", args[0], iteration, ens.N)
			fmt.Fprint(out, canvas.String())

			if svgPath == "" {
				return nil
			}
			return writeOutput(out, svgPath, func(w io.Writer) error {
				_, err := io.WriteString(w, export.EnsembleSVG(ens, cam, svgSize))
				return err
			})
		},
	}
	cmd.Flags().IntVar(&iteration, "iteration", -1, "snapshot iteration (default: last)")
	cmd.Flags().Float64Var(&zoom, "zoom", 1, "zoom factor")
	cmd.Flags().Float64Var(&rotX, "rot-x", 0, "rotation about x in radians")
	cmd.Flags().Float64Var(&rotY, "rot-y", 0, "rotation about y in radians")
	cmd.Flags().StringVar(&svgPath, "svg", "", "also write an SVG image to this file")
	cmd.Flags().IntVar(&svgSize, "svg-size", 800, "SVG image size in pixels")
	return cmd
}

func (a *app) benchCmd() *cobra.Command {
	var (
		n, dim, evals, maxWorkers int
		seed                      uint64
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "measure force evaluation throughput per worker count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ens, err := plummer.Plummer(seed, n, dim, 1, 1)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "benchmarking N=%d dim=%d, %d evaluations\n\n", n, dim, evals)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WORKERS\tTIME\tEVALS/SEC\tPAIRS/SEC")

			pairs := float64(n) * float64(n-1) / 2
			for workers := 1; workers <= maxWorkers; workers *= 2 {
				if (n*dim)%workers != 0 {
					continue
				}
				elapsed, err := benchWorkers(cmd.Context(), ens, workers, evals)
				if err != nil {
					return err
				}
				rate := float64(evals) / elapsed.Seconds()
				fmt.Fprintf(w, "%d\t%v\t%.1f\t%.3g\n", workers, elapsed.Round(time.Microsecond), rate, rate*pairs)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&n, "n", 256, "number of particles")
	cmd.Flags().IntVar(&dim, "dim", 3, "spatial dimensions")
	cmd.Flags().IntVar(&evals, "evals", 20, "force evaluations per worker count")
	cmd.Flags().IntVar(&maxWorkers, "max-workers", 8, "largest worker count")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "random seed")
	return cmd
}

func benchWorkers(ctx context.Context, ens *nbody.Ensemble, workers, evals int) (time.Duration, error) {
	dom, err := nbody.NewDomain(ens.N, ens.Dim, workers, logr.Discard())
	if err != nil {
		return 0, err
	}
	ex, err := shard.New(ctx, dom, ens.Mass)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	for range evals {
		if err := ex.Evaluate(ctx, ens); err != nil {
			ex.Close()
			return 0, err
		}
	}
	elapsed := time.Since(start)
	return elapsed, ex.Close()
}

func (a *app) presetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "list the available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tIC\tN\tDIM\tW\tDT\tEND")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%g\t%g\n",
					name, p.InitialConditions, p.N, p.Dim, p.Workers, p.Dt, p.EndTime)
			}
			return w.Flush()
		},
	}
}

func (a *app) liveCmd() *cobra.Command {
	f := &launchFlags{}
	var steps int
	cmd := &cobra.Command{
		Use:   "live [[seed] N dt end]",
		Short: "integrate with a live terminal view",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.buildConfig(cmd, f, args)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Seed == 0 {
				cfg.Seed = uint64(time.Now().UnixNano())
			}

			ens, err := experiment.NewRegistry().InitialConditions(cfg)
			if err != nil {
				return err
			}
			// The view owns the terminal, so nothing is logged.
			dom, err := nbody.NewDomain(cfg.N, cfg.Dim, cfg.Workers, logr.Discard())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			ex, err := shard.New(ctx, dom, ens.Mass)
			if err != nil {
				return err
			}
			defer ex.Close()
			st, err := hermite.New(dom, ex, cfg.Dt)
			if err != nil {
				return err
			}

			m, err := viz.NewModel(ctx, st, ens, steps)
			if err != nil {
				return err
			}
			final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
			if err != nil {
				return err
			}
			if fm, ok := final.(viz.Model); ok && fm.Err() != nil {
				return fm.Err()
			}
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().IntVar(&steps, "steps", 10, "integration steps per frame")
	return cmd
}
