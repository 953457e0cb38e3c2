package commands

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teranos/omekalink/display"
	"github.com/teranos/omekalink/errors"
	"github.com/teranos/omekalink/link"
	"github.com/teranos/omekalink/logger"
)

// LinkCmd adds items referenced through contributor properties to item sets
var LinkCmd = &cobra.Command{
	Use:   "link",
	Short: "Add referenced items to item sets",
	Long: `Stream items from Omeka S, follow the item references held in contributor
properties and add each referenced item to the item set mapped to that property.

Targets map a preset name or a property term to an item set id. Presets come from
[link.properties]; [link.targets] in am.toml supplies defaults that --target overrides.

Every item set is checked before the first page is read. Items already in their item
set are left untouched, so a run can be repeated safely.

Examples:
  omekalink link --target artists=12 --target authors=13
  omekalink link --source 3 --target rcl:essayAuthor=14 --workers 4
  omekalink link --json --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: runLink,
}

func init() {
	LinkCmd.Flags().StringArrayP("target", "t", nil, "Map a preset or property term to an item set: NAME=ID (repeatable)")
	LinkCmd.Flags().Int64("source", 0, "Only scan items of this item set (0 = whole repository)")
	LinkCmd.Flags().Int("workers", 0, "Concurrent membership writes per page (default from link.workers)")
	LinkCmd.Flags().Int("per-page", 0, "Items per page request (default from omeka.per_page)")
	LinkCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while running, e.g. :9090")
}

func runLink(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	flagTargets, _ := cmd.Flags().GetStringArray("target")
	targets, err := resolveTargets(cfg.Link.GetProperties(), cfg.Link.Targets, flagTargets)
	if err != nil {
		return err
	}

	workers := cfg.Link.GetWorkers()
	if cmd.Flags().Changed("workers") {
		workers, _ = cmd.Flags().GetInt("workers")
	}
	perPage := cfg.Omeka.GetPerPage()
	if cmd.Flags().Changed("per-page") {
		perPage, _ = cmd.Flags().GetInt("per-page")
	}
	metricsAddr := cfg.Metrics.Addr
	if cmd.Flags().Changed("metrics-addr") {
		metricsAddr, _ = cmd.Flags().GetString("metrics-addr")
	}

	log := logger.ComponentLogger("link")
	remote, err := newRemote(cfg, "", logger.ComponentLogger("omeka"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *link.Metrics
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = link.NewMetrics(reg)

		shutdown, err := serveMetrics(metricsAddr, reg, log)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	coordinator := link.NewCoordinator(remote, link.Options{
		PerPage: perPage,
		Workers: workers,
		Logger:  log,
		Metrics: metrics,
	})

	report, runErr := coordinator.Run(ctx, link.Request{
		SourceItemSet: sourceItemSet(cmd, cfg.Link.SourceItemSet),
		Targets:       targets,
	})
	if report != nil {
		if err := renderLinkReport(cmd, report); err != nil {
			return err
		}
	}
	return runErr
}

// resolveTargets merges configured and flag targets into property term -> item set.
// Flag targets override configured ones for the same property.
func resolveTargets(properties map[string]string, configured map[string]int64, flags []string) (map[string]int64, error) {
	targets := make(map[string]int64)

	names := make([]string, 0, len(configured))
	for name := range configured {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		term, err := resolveProperty(properties, name)
		if err != nil {
			return nil, errors.Wrap(err, "link.targets")
		}
		targets[term] = configured[name]
	}

	for _, raw := range flags {
		name, id, err := parseTarget(raw)
		if err != nil {
			return nil, err
		}
		term, err := resolveProperty(properties, name)
		if err != nil {
			return nil, err
		}
		targets[term] = id
	}

	if len(targets) == 0 {
		return nil, errors.WithHint(errors.New("no link targets"),
			"pass --target artists=12 or add a [link.targets] table to am.toml")
	}
	return targets, nil
}

// parseTarget splits NAME=ID
func parseTarget(raw string) (string, int64, error) {
	name, idText, ok := strings.Cut(raw, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", 0, errors.WithHint(errors.Newf("invalid target %q", raw), "use NAME=ID, e.g. artists=12")
	}
	id, err := strconv.ParseInt(strings.TrimSpace(idText), 10, 64)
	if err != nil || id <= 0 {
		return "", 0, errors.Newf("invalid item set id in target %q", raw)
	}
	return name, id, nil
}

// resolveProperty maps a preset name or property term to a property term.
// Config keys arrive lowercased, so terms are matched case-insensitively
// against the preset terms to recover their canonical spelling.
func resolveProperty(properties map[string]string, name string) (string, error) {
	if term, ok := properties[name]; ok {
		return term, nil
	}
	for preset, term := range properties {
		if strings.EqualFold(preset, name) {
			return term, nil
		}
	}

	if strings.Contains(name, ":") {
		for _, term := range properties {
			if strings.EqualFold(term, name) {
				return term, nil
			}
		}
		return name, nil
	}

	presets := make([]string, 0, len(properties))
	for preset := range properties {
		presets = append(presets, preset)
	}
	sort.Strings(presets)
	return "", errors.WithHintf(errors.Newf("unknown property preset %q", name),
		"use a property term such as rcl:artist or one of: %s", strings.Join(presets, ", "))
}

func renderLinkReport(cmd *cobra.Command, report *link.Report) error {
	out := cmd.OutOrStdout()
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(out, report)
	}

	rows := make([][]string, 0, len(report.Fields)+1)
	for _, name := range report.FieldNames() {
		s := report.Field(name)
		rows = append(rows, statsRow(name, strconv.FormatInt(report.Targets[name], 10), s))
	}
	rows = append(rows, statsRow("total", "", report.Totals()))

	if err := display.Table(out, []string{"property", "item set", "found", "added", "already present", "errors"}, rows); err != nil {
		return err
	}

	status := "complete"
	if report.Interrupted {
		status = "interrupted"
	}
	_, err := fmt.Fprintf(out, "Run %s %s: %d pages, %d items in %s\n",
		report.RunID, status, report.Pages, report.Items, report.Duration().Round(time.Millisecond))
	return err
}

func statsRow(name, itemSet string, s link.FieldStats) []string {
	return []string{
		name,
		itemSet,
		strconv.Itoa(s.Found),
		strconv.Itoa(s.Added),
		strconv.Itoa(s.Skipped),
		strconv.Itoa(s.Errors),
	}
}

// serveMetrics exposes reg on addr/metrics until the returned func is called
func serveMetrics(addr string, reg *prometheus.Registry, log *zap.SugaredLogger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen for metrics on %s", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("Metrics server failed", logger.FieldError, err.Error())
		}
	}()
	log.Infow("Serving metrics", logger.FieldURL, "http://"+ln.Addr().String()+"/metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
