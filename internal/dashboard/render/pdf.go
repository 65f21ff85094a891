package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gosimple/slug"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	dashboarddomain "github.com/smallbiznis/subsight/internal/dashboard/domain"
)

// FileName is the report file name for an as-of date, e.g. subsight-dashboard-2024-12-31.pdf.
func FileName(asOf string) string {
	return slug.Make("subsight dashboard "+asOf) + ".pdf"
}

// PDF lays out the KPI header, one chart per panel and the channel and
// retention tables.
func PDF(ctx context.Context, snapshot dashboarddomain.Snapshot) (io.Reader, error) {
	charts, err := Charts(snapshot)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Subscription Analytics", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(8,
		text.NewCol(12, fmt.Sprintf("As of %s", snapshot.AsOf), props.Text{Size: 10}),
	)
	m.AddRow(12,
		text.NewCol(12, Headline(snapshot.KPIs), props.Text{
			Size:  11,
			Style: fontstyle.Bold,
			Top:   3,
		}),
	)

	for _, c := range charts {
		m.AddRow(95,
			image.NewFromBytesCol(12, c.PNG, extension.Png, props.Rect{
				Center:  true,
				Percent: 95,
			}),
		)
	}
	if len(charts) == 0 {
		m.AddRow(10, text.NewCol(12, "No chart data available.", props.Text{Size: 9, Top: 3}))
	}

	addTable(m, titleRevenueByChannel, []string{"Channel", "Revenue"}, channelRows(snapshot))
	addTable(m, titleRetention, []string{"Months since signup", "Active users"}, retentionRows(snapshot))

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}

// WritePDF renders the report into dir and returns its path.
func WritePDF(ctx context.Context, dir string, snapshot dashboarddomain.Snapshot) (string, error) {
	doc, err := PDF(ctx, snapshot)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName(snapshot.AsOf))
	raw, err := io.ReadAll(doc)
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, raw, 0o644)
}

func addTable(m core.Maroto, title string, header []string, rows [][]string) {
	m.AddRow(14,
		text.NewCol(12, title, props.Text{Size: 12, Style: fontstyle.Bold, Top: 6}),
	)
	m.AddRow(8,
		text.NewCol(6, header[0], props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(6, header[1], props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	if len(rows) == 0 {
		m.AddRow(6, col.New(12).Add(text.New("No data", props.Text{Size: 9})))
		return
	}
	for _, row := range rows {
		m.AddRow(6,
			text.NewCol(6, row[0], props.Text{Size: 9}),
			text.NewCol(6, row[1], props.Text{Size: 9, Align: align.Right}),
		)
	}
}

func channelRows(snapshot dashboarddomain.Snapshot) [][]string {
	rows := make([][]string, 0, len(snapshot.RevenueByChannel))
	for _, c := range snapshot.RevenueByChannel {
		rows = append(rows, []string{c.Channel, c.Revenue.String()})
	}
	return rows
}

func retentionRows(snapshot dashboarddomain.Snapshot) [][]string {
	rows := make([][]string, 0, len(snapshot.Retention))
	for _, p := range snapshot.Retention {
		rows = append(rows, []string{fmt.Sprintf("%d", p.MonthsSinceSignup), fmt.Sprintf("%d", p.ActiveUsers)})
	}
	return rows
}
