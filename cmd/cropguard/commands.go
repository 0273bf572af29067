package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kirillkom/cropguard/internal/bootstrap"
	"github.com/kirillkom/cropguard/internal/config"
	"github.com/kirillkom/cropguard/internal/core/domain"
	"github.com/kirillkom/cropguard/internal/core/ports"
	"github.com/kirillkom/cropguard/internal/core/usecase"
)

type command interface {
	validate(args []string) error
	configure(cfg *config.Config)
	run(ctx context.Context, app *bootstrap.App, w io.Writer) error
}

type commandSpec struct {
	flags func(fs *flag.FlagSet) command
}

var commands = map[string]commandSpec{
	"detect":    {flags: newDetectCommand},
	"history":   {flags: newHistoryCommand},
	"dashboard": {flags: newDashboardCommand},
	"add-crop":  {flags: newAddCropCommand},
	"export":    {flags: newExportCommand},
}

type detectCommand struct {
	out   *string
	image string
}

func newDetectCommand(fs *flag.FlagSet) command {
	return &detectCommand{out: fs.String("out", "", "directory to save the text report into")}
}

func (c *detectCommand) validate(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("exactly one image path is required")
	}
	c.image = args[0]
	return nil
}

func (c *detectCommand) configure(cfg *config.Config) {
	cfg.ReportDir = *c.out
}

func (c *detectCommand) run(ctx context.Context, app *bootstrap.App, w io.Writer) error {
	sessions := app.Sessions()
	snap, err := sessions.Create(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sessions.Close(context.WithoutCancel(ctx), snap.ID) }()

	file, err := os.Open(c.image)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	if _, err := sessions.SelectImage(ctx, snap.ID, ports.ImageUpload{
		Filename: filepath.Base(c.image),
		Body:     file,
	}); err != nil {
		return err
	}
	view, err := sessions.Detect(ctx, snap.ID)
	if err != nil {
		return err
	}
	printResult(w, view)

	if *c.out == "" {
		return nil
	}
	report, err := sessions.Report(ctx, snap.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nReport saved to %s\n", filepath.Join(*c.out, report.Filename))
	return nil
}

func printResult(w io.Writer, view *domain.ResultView) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Disease:\t%s\n", view.DisplayName)
	fmt.Fprintf(tw, "Confidence:\t%s (%s)\n", view.ConfidenceText, view.ConfidenceTier)
	fmt.Fprintf(tw, "Severity:\t%s\n", view.Severity)
	_ = tw.Flush()

	if view.Description != "" {
		fmt.Fprintf(w, "\n%s\n", view.Description)
	}
	printList(w, "Treatment", view.Treatment)
	if view.OrganicSolution != "" {
		fmt.Fprintf(w, "\nOrganic solution: %s\n", view.OrganicSolution)
	}
	printList(w, "Prevention", view.Prevention)
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for i, item := range items {
		fmt.Fprintf(w, "  %d. %s\n", i+1, item)
	}
}

type historyCommand struct {
	limit *int
}

func newHistoryCommand(fs *flag.FlagSet) command {
	return &historyCommand{limit: fs.Int("limit", usecase.DefaultHistoryLimit, "number of entries to show")}
}

func (c *historyCommand) validate(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unexpected arguments %v", args)
	}
	if *c.limit <= 0 {
		return fmt.Errorf("limit must be positive")
	}
	return nil
}

func (c *historyCommand) configure(cfg *config.Config) {
	cfg.HistoryFailurePolicy = config.PolicySurfaceError
}

func (c *historyCommand) run(ctx context.Context, app *bootstrap.App, w io.Writer) error {
	entries, err := app.DashboardUC.LoadHistory(ctx, *c.limit)
	if err != nil {
		return err
	}
	printHistory(w, usecase.HistoryRows(entries, time.Now().UTC()))
	return nil
}

func printHistory(w io.Writer, rows []domain.HistoryRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No detections yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDISEASE\tSTATUS\tCONFIDENCE\tWHEN")
	for _, row := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", row.ID, row.DisplayName, row.Status, row.ConfidenceText, row.TimeAgo)
	}
	_ = tw.Flush()
}

type dashboardCommand struct{}

func newDashboardCommand(*flag.FlagSet) command { return dashboardCommand{} }

func (dashboardCommand) validate(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unexpected arguments %v", args)
	}
	return nil
}

func (dashboardCommand) configure(*config.Config) {}

func (dashboardCommand) run(ctx context.Context, app *bootstrap.App, w io.Writer) error {
	view, err := app.Dashboard().Load(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Total detections:\t%d\n", view.Summary.TotalDetections)
	fmt.Fprintf(tw, "Total crops:\t%d\n", view.Summary.TotalCrops)
	fmt.Fprintf(tw, "Healthy:\t%d\n", view.Summary.Healthy)
	fmt.Fprintf(tw, "Infected:\t%d\n", view.Summary.Infected)
	_ = tw.Flush()

	if len(view.Chart) > 0 {
		fmt.Fprintln(w, "\nDistribution:")
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, slice := range view.Chart {
			fmt.Fprintf(tw, "  %s\t%d\n", slice.Label, slice.Count)
		}
		_ = tw.Flush()
	}

	fmt.Fprintln(w, "\nRecent detections:")
	printHistory(w, view.History)
	return nil
}

type addCropCommand struct {
	cropType *string
	location *string
	planted  *string
	extra    map[string]string
}

func newAddCropCommand(fs *flag.FlagSet) command {
	c := &addCropCommand{
		cropType: fs.String("type", "", "crop type (required)"),
		location: fs.String("location", "", "field location"),
		planted:  fs.String("planted", "", "planting date, YYYY-MM-DD"),
		extra:    map[string]string{},
	}
	fs.Func("field", "extra form field as key=value (repeatable)", func(value string) error {
		key, val, ok := strings.Cut(value, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return fmt.Errorf("expected key=value, got %q", value)
		}
		c.extra[strings.TrimSpace(key)] = strings.TrimSpace(val)
		return nil
	})
	return c
}

func (c *addCropCommand) validate(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unexpected arguments %v", args)
	}
	if strings.TrimSpace(*c.cropType) == "" {
		return fmt.Errorf("-type is required")
	}
	return nil
}

func (c *addCropCommand) configure(*config.Config) {}

func (c *addCropCommand) form() domain.CropForm {
	form := domain.CropForm{}
	for key, value := range c.extra {
		form[key] = value
	}
	form["crop_type"] = strings.TrimSpace(*c.cropType)
	if v := strings.TrimSpace(*c.location); v != "" {
		form["location"] = v
	}
	if v := strings.TrimSpace(*c.planted); v != "" {
		form["planted_date"] = v
	}
	return form
}

func (c *addCropCommand) run(ctx context.Context, app *bootstrap.App, w io.Writer) error {
	receipt, err := app.Dashboard().AddCrop(ctx, c.form())
	if err != nil {
		return err
	}
	if receipt.CropID > 0 {
		fmt.Fprintf(w, "Crop added (id %d)\n", receipt.CropID)
		return nil
	}
	fmt.Fprintln(w, "Crop added")
	return nil
}

type exportCommand struct {
	out *string
}

func newExportCommand(fs *flag.FlagSet) command {
	return &exportCommand{out: fs.String("out", "", "destination .xlsx file (required)")}
}

func (c *exportCommand) validate(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unexpected arguments %v", args)
	}
	if strings.TrimSpace(*c.out) == "" {
		return fmt.Errorf("-out is required")
	}
	return nil
}

func (c *exportCommand) configure(*config.Config) {}

func (c *exportCommand) run(ctx context.Context, app *bootstrap.App, w io.Writer) error {
	file, err := os.Create(*c.out)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := app.Dashboard().Export(ctx, file); err != nil {
		_ = file.Close()
		_ = os.Remove(*c.out)
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}
	fmt.Fprintf(w, "Dashboard exported to %s\n", *c.out)
	return nil
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
