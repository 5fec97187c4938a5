// Package cli holds the chemvis command line client: explicit command
// functions over the client facade, a Presenter for output and the cobra
// wiring.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"chemvis/internal/charts"
	"chemvis/internal/client"
	"chemvis/pkg/contracts/domain"
	"chemvis/pkg/contracts/events"
)

// API is the part of client.Client the commands use
type API interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*domain.DatasetSummary, error)
	History(ctx context.Context, limit int) ([]domain.DatasetListing, error)
	Summary(ctx context.Context, id int64) (*domain.DatasetSummary, error)
	Equipment(ctx context.Context, id int64) ([]domain.EquipmentRecord, error)
	Report(ctx context.Context, id int64, format string) ([]byte, error)
	Watch(ctx context.Context, fn func(events.DatasetEvent)) error
}

// Chart kinds accepted by Commands.Chart
const (
	ChartDistribution = "distribution"
	ChartAverages     = "averages"
)

// Commands runs user actions against the API and reports through the Presenter
type Commands struct {
	api       API
	presenter Presenter
}

// NewCommands creates the command set
func NewCommands(api API, presenter Presenter) *Commands {
	return &Commands{api: api, presenter: presenter}
}

// Upload sends the file at path and shows the resulting summary
func (c *Commands) Upload(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return c.fail(fmt.Errorf("open %s: %w", path, err))
	}
	defer f.Close()

	summary, err := c.api.Upload(ctx, filepath.Base(path), f)
	if err != nil {
		return c.fail(err)
	}
	c.presenter.Summary(*summary)
	return nil
}

// History lists the most recent datasets
func (c *Commands) History(ctx context.Context, limit int) error {
	listings, err := c.api.History(ctx, limit)
	if err != nil {
		return c.fail(err)
	}
	c.presenter.History(listings)
	return nil
}

// Details shows one dataset
func (c *Commands) Details(ctx context.Context, id int64) error {
	summary, err := c.api.Summary(ctx, id)
	if err != nil {
		return c.fail(err)
	}
	c.presenter.Summary(*summary)
	return nil
}

// Rows shows the uploaded equipment rows of one dataset
func (c *Commands) Rows(ctx context.Context, id int64) error {
	records, err := c.api.Equipment(ctx, id)
	if err != nil {
		return c.fail(err)
	}
	c.presenter.Equipment(id, records)
	return nil
}

// DownloadReport saves the report of id to outPath. An empty outPath
// becomes report_<id>.<format> in the working directory.
func (c *Commands) DownloadReport(ctx context.Context, id int64, format, outPath string) error {
	parsed, err := domain.ParseReportFormat(format)
	if err != nil {
		return c.fail(err)
	}
	if outPath == "" {
		outPath = fmt.Sprintf("report_%d.%s", id, parsed)
	}

	data, err := c.api.Report(ctx, id, string(parsed))
	if err != nil {
		return c.fail(err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return c.fail(fmt.Errorf("write %s: %w", outPath, err))
	}
	c.presenter.Saved("Report", outPath, len(data))
	return nil
}

// Chart renders a PNG bar chart of dataset id
func (c *Commands) Chart(ctx context.Context, id int64, kind, outPath string) error {
	var draw func(domain.DatasetSummary) ([]byte, error)
	switch kind {
	case "", ChartDistribution:
		kind, draw = ChartDistribution, charts.TypeDistribution
	case ChartAverages:
		draw = charts.Averages
	default:
		return c.fail(domain.NewValidationError("kind", "unknown chart %q (use %s or %s)", kind, ChartDistribution, ChartAverages))
	}
	if outPath == "" {
		outPath = fmt.Sprintf("chart_%d_%s.png", id, kind)
	}

	summary, err := c.api.Summary(ctx, id)
	if err != nil {
		return c.fail(err)
	}
	png, err := draw(*summary)
	if err != nil {
		return c.fail(fmt.Errorf("render chart: %w", err))
	}
	if err := os.WriteFile(outPath, png, 0o644); err != nil {
		return c.fail(fmt.Errorf("write %s: %w", outPath, err))
	}
	c.presenter.Saved("Chart", outPath, len(png))
	return nil
}

// Watch prints dataset events until ctx is cancelled
func (c *Commands) Watch(ctx context.Context) error {
	if err := c.api.Watch(ctx, c.presenter.Event); err != nil {
		return c.fail(err)
	}
	return nil
}

// fail reports err once through the presenter and returns it for the exit code
func (c *Commands) fail(err error) error {
	c.presenter.Error(UserMessage(err))
	return err
}

// UserMessage turns an error into a single line for the user
func UserMessage(err error) string {
	var (
		terr   *client.TransportError
		valErr *domain.ValidationError
	)

	switch {
	case errors.As(err, &valErr):
		return valErr.Error()
	case errors.Is(err, domain.ErrNotFound):
		if errors.As(err, &terr) && terr.Problem != nil && terr.Problem.Detail != "" {
			return terr.Problem.Detail
		}
		return "dataset not found (it may have been evicted from the history)"
	case errors.As(err, &terr):
		switch terr.Kind {
		case client.KindNetwork:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return "request cancelled"
			}
			return fmt.Sprintf("cannot reach the server: %v", terr.Err)
		case client.KindDecode:
			return "unexpected response from the server"
		}
		if terr.Problem != nil {
			if terr.Problem.Detail != "" {
				return terr.Problem.Detail
			}
			return terr.Problem.Title
		}
		return fmt.Sprintf("server answered %d", terr.StatusCode)
	default:
		return err.Error()
	}
}
