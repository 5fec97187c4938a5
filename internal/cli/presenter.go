package cli

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"chemvis/pkg/contracts/domain"
	"chemvis/pkg/contracts/events"
)

// Presenter shows command results to the user
type Presenter interface {
	Summary(s domain.DatasetSummary)
	History(listings []domain.DatasetListing)
	Equipment(id int64, records []domain.EquipmentRecord)
	Saved(kind, path string, size int)
	Event(e events.DatasetEvent)
	Error(message string)
}

// TextPresenter writes plain text for terminals
type TextPresenter struct {
	out    io.Writer
	errOut io.Writer
}

// NewTextPresenter creates a presenter writing results to out and errors to errOut
func NewTextPresenter(out, errOut io.Writer) *TextPresenter {
	return &TextPresenter{out: out, errOut: errOut}
}

func (p *TextPresenter) Summary(s domain.DatasetSummary) {
	fmt.Fprintf(p.out, "Dataset %d\n", s.ID)
	fmt.Fprintf(p.out, "  Label:            %s\n", s.Label)
	fmt.Fprintf(p.out, "  Uploaded:         %s\n", s.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(p.out, "  Total Count:      %d\n", s.TotalCount)
	fmt.Fprintf(p.out, "  Avg Flowrate:     %.2f\n", s.AvgFlowrate)
	fmt.Fprintf(p.out, "  Avg Pressure:     %.2f\n", s.AvgPressure)
	fmt.Fprintf(p.out, "  Avg Temperature:  %.2f\n", s.AvgTemperature)
	fmt.Fprintln(p.out, "  Type Distribution:")

	types := make([]string, 0, len(s.TypeDistribution))
	for t := range s.TypeDistribution {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(p.out, "    %s: %d\n", t, s.TypeDistribution[t])
	}
}

func (p *TextPresenter) History(listings []domain.DatasetListing) {
	if len(listings) == 0 {
		fmt.Fprintln(p.out, "(no datasets)")
		return
	}

	tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUPLOADED\tROWS\tLABEL")
	for _, l := range listings {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", l.ID, l.CreatedAt.UTC().Format(time.RFC3339), l.TotalCount, l.Label)
	}
	_ = tw.Flush()
}

func (p *TextPresenter) Equipment(id int64, records []domain.EquipmentRecord) {
	if len(records) == 0 {
		fmt.Fprintf(p.out, "(dataset %d has no rows)\n", id)
		return
	}

	tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tFLOWRATE\tPRESSURE\tTEMPERATURE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%.2f\n", r.Name, r.Type, r.Flowrate, r.Pressure, r.Temperature)
	}
	_ = tw.Flush()
}

func (p *TextPresenter) Saved(kind, path string, size int) {
	fmt.Fprintf(p.out, "✓ %s saved to %s (%d bytes)\n", kind, path, size)
}

func (p *TextPresenter) Event(e events.DatasetEvent) {
	switch e.Type {
	case events.MessageTypeDatasetCreated:
		label := ""
		if e.Dataset != nil {
			label = " " + e.Dataset.Label
		}
		fmt.Fprintf(p.out, "%s created dataset %d%s\n", e.Timestamp.UTC().Format(time.RFC3339), e.DatasetID, label)
	case events.MessageTypeDatasetEvicted:
		fmt.Fprintf(p.out, "%s evicted dataset %d\n", e.Timestamp.UTC().Format(time.RFC3339), e.DatasetID)
	}
}

func (p *TextPresenter) Error(message string) {
	fmt.Fprintln(p.errOut, "✗ Error:", message)
}
